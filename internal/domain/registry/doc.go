// Package registry tracks live terminal sessions by id.
//
// Ids are allocated from a process-wide counter starting at 1 and are never
// reused while the process runs. Allocation and insertion happen under one
// lock, so an entry is visible as soon as its id exists.
//
// Example Usage:
//
//	reg := registry.New[*session.Session](nil)
//	id, sess := reg.Register(func(id registry.ID) *session.Session {
//		return session.New(session.Options{ID: id, ...})
//	})
//	defer reg.Unregister(id)
package registry
