package llmservice

import "errors"

// ErrEmptyResponse is returned when the chat model answers with no choices.
var ErrEmptyResponse = errors.New("chat model returned an empty response")
