package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
)

// RunWithGolden executes a scenario and compares its command trace against
// the golden file testdata/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenarioPath string) {
	t.Helper()
	sc, err := LoadScenario(scenarioPath)
	require.NoError(t, err)

	trace := Run(t, sc)

	g := goldie.New(t)
	g.Assert(t, sc.Name, trace.Bytes())
}
