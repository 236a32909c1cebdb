package session

import "context"

// Listener is a save-lifecycle hook. Listeners run in registration order,
// exactly once per save: BeforeSaveChanges strictly before the commit,
// AfterCommit strictly after. A BeforeSaveChanges error aborts the save;
// an AfterCommit error is surfaced as *AfterCommitError because the commit
// is already durable.
//
// Both hooks receive the caller's context, so the asynchronous path can
// suspend inside a listener; the synchronous path passes a background
// context.
type Listener interface {
	BeforeSaveChanges(ctx context.Context, s *Session) error
	AfterCommit(ctx context.Context, s *Session) error
}

// ListenerFuncs adapts plain functions to the Listener interface. Nil
// fields are skipped.
type ListenerFuncs struct {
	Before func(ctx context.Context, s *Session) error
	After  func(ctx context.Context, s *Session) error
}

func (l ListenerFuncs) BeforeSaveChanges(ctx context.Context, s *Session) error {
	if l.Before == nil {
		return nil
	}
	return l.Before(ctx, s)
}

func (l ListenerFuncs) AfterCommit(ctx context.Context, s *Session) error {
	if l.After == nil {
		return nil
	}
	return l.After(ctx, s)
}
