package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"
)

// hashWorkers bounds how many bcrypt hashes run concurrently. bcrypt is
// deliberately slow; running it on a small background pool keeps that cost
// off the goroutine handling the request, per the dispatch-loop requirement.
const hashWorkers = 4

type hashJob struct {
	password string
	result   chan hashResult
}

type hashResult struct {
	hash []byte
	err  error
}

// passwordHasher runs bcrypt on a fixed pool of background workers that take
// jobs off a shared channel and answer on a per-job result channel.
type passwordHasher struct {
	jobs chan hashJob
}

func newPasswordHasher() *passwordHasher {
	h := &passwordHasher{jobs: make(chan hashJob)}
	for i := 0; i < hashWorkers; i++ {
		go h.run()
	}
	return h
}

func (h *passwordHasher) run() {
	for job := range h.jobs {
		hash, err := bcrypt.GenerateFromPassword([]byte(job.password), bcrypt.DefaultCost)
		job.result <- hashResult{hash: hash, err: err}
	}
}

// Hash submits password to the worker pool and waits for the result,
// returning early if ctx is cancelled first.
func (h *passwordHasher) Hash(ctx context.Context, password string) ([]byte, error) {
	result := make(chan hashResult, 1)
	select {
	case h.jobs <- hashJob{password: password, result: result}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-result:
		return r.hash, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
