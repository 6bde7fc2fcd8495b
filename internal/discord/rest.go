package discord

import (
	"errors"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"aurora/pkg/retrylimit"
)

// restError exposes the status code of a discordgo REST failure to retrylimit.
type restError struct {
	err *discordgo.RESTError
}

func (e *restError) Error() string   { return e.err.Error() }
func (e *restError) Unwrap() error   { return e.err }
func (e *restError) StatusCode() int { return e.err.Response.StatusCode }

// classify prepares err for retrylimit: 429 and 5xx stay retryable, other
// HTTP failures are fatal, transport errors are retried as they are.
func classify(err error) error {
	var re *discordgo.RESTError
	if !errors.As(err, &re) || re.Response == nil {
		return err
	}
	wrapped := &restError{err: re}
	code := re.Response.StatusCode
	if code == http.StatusTooManyRequests || code >= 500 {
		return wrapped
	}
	return retrylimit.Fatal(wrapped)
}
