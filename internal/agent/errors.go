package agent

import "errors"

// ErrGeneration indicates the model could not produce a response after all
// retries. Callers surface it as a service failure rather than an empty
// answer.
var ErrGeneration = errors.New("answer generation failed")
