// Copyright 2019 eBay Inc.
// Primary authors: Simon Fell, Diego Ongaro,
//                  Raymond Kroeker, and Sathish Kandasamy.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package exec

import (
	"fmt"
)

// ErrorKind classifies EvaluationErrors.
type ErrorKind int

// Kinds of EvaluationErrors.
const (
	// The sub-plan of a Service node couldn't be written as SPARQL.
	Serialization ErrorKind = iota + 1
	// The request to the endpoint failed, or the endpoint returned an HTTP
	// error status.
	Transport
	// The endpoint responded with something other than solution bindings, or
	// with a response that couldn't be decoded.
	UnexpectedResult
)

func (k ErrorKind) String() string {
	switch k {
	case Serialization:
		return "Serialization"
	case Transport:
		return "Transport"
	case UnexpectedResult:
		return "UnexpectedResult"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// EvaluationError is returned when a Service node can't be evaluated.
type EvaluationError struct {
	Kind     ErrorKind
	Endpoint string
	Cause    error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("%v error evaluating service %s: %v", e.Kind, e.Endpoint, e.Cause)
}

// Unwrap returns the cause.
func (e *EvaluationError) Unwrap() error {
	return e.Cause
}
