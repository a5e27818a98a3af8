// Package session tracks the engine run that produced the recorded data.
package session

import (
	"time"

	"github.com/google/uuid"
)

// Session identifies one engine run. Every persisted record carries its ID.
type Session struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	StartedAt time.Time `json:"startedAt"`
}

// Context holds the session shared by every component of a run.
type Context struct {
	session Session
}

// NewContext starts a session named name.
func NewContext(name string, now time.Time) *Context {
	return &Context{session: Session{ID: uuid.New(), Name: name, StartedAt: now}}
}

// Get returns the current session.
func (c *Context) Get() Session {
	return c.session
}
