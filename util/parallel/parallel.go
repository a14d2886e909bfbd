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

// Package parallel runs tasks concurrently and collects their errors.
package parallel

import (
	"context"
	"sync"
)

// Invoke runs the calls concurrently in a child of ctx. The first call to
// fail cancels the child context; Invoke then waits for the rest and returns
// that first error. Otherwise it returns nil once every call has completed.
func Invoke(ctx context.Context, calls ...func(ctx context.Context) error) error {
	return InvokeN(ctx, len(calls), func(ctx context.Context, i int) error {
		return calls[i](ctx)
	})
}

// InvokeN runs call for i in [0, n) concurrently, with the same error and
// cancellation behavior as Invoke.
func InvokeN(ctx context.Context, n int, call func(ctx context.Context, i int) error) error {
	return InvokeLimit(ctx, n, n, call)
}

// InvokeLimit is like InvokeN but runs at most limit calls at a time. A limit
// of zero or less means no limit. Calls not yet started when the context is
// canceled are skipped.
func InvokeLimit(ctx context.Context, n, limit int, call func(ctx context.Context, i int) error) error {
	if limit <= 0 || limit > n {
		limit = n
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	tokens := make(chan struct{}, limit)
	for i := 0; i < n; i++ {
		select {
		case tokens <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			if firstErr == nil {
				firstErr = ctx.Err()
			}
			return firstErr
		}
		wg.Add(1)
		go func(i int) {
			defer func() {
				<-tokens
				wg.Done()
			}()
			if err := call(ctx, i); err != nil {
				once.Do(func() {
					firstErr = err
					cancel()
				})
			}
		}(i)
	}
	wg.Wait()
	return firstErr
}

// Go is like the go keyword but returns a function that blocks until the
// goroutine exits. The returned function may be called more than once.
func Go(run func()) (wait func()) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		run()
	}()
	return func() {
		<-done
	}
}

// GoCaptureError is like Go, except the returned function also reports the
// error that run returned. Every call of wait reports the same error.
func GoCaptureError(run func() error) (wait func() error) {
	var err error
	done := make(chan struct{})
	go func() {
		defer close(done)
		err = run()
	}()
	return func() error {
		<-done
		return err
	}
}
