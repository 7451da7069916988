// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package acquire

import "errors"

var (
	// ErrInit covers device initialization failures. Fatal.
	ErrInit = errors.New("device initialization failed")
	// ErrRegistration covers interrupt and timer setup failures. Fatal.
	ErrRegistration = errors.New("wake source registration failed")
	// ErrTransientRead is a failed single-sample read. The cycle is skipped.
	ErrTransientRead = errors.New("sample read failed")
	// ErrFIFORead is a failed burst read. Fatal, since the FIFO read position
	// is unknown afterwards.
	ErrFIFORead = errors.New("FIFO read failed")
	// ErrFIFOBatch means a burst period would collect more samples than the
	// FIFO holds. Fatal.
	ErrFIFOBatch = errors.New("FIFO batch exceeds FIFO capacity")
	// ErrSpuriousWake is an event the worker was not waiting for. Ignored.
	ErrSpuriousWake = errors.New("spurious wake")
	// ErrStalled means no wake event arrived within the scenario's wait timeout.
	ErrStalled = errors.New("no wake events")
	// ErrRateTolerance means the achieved rate missed the target.
	ErrRateTolerance = errors.New("sample frequency outside tolerance")
	// ErrNoInterrupt means the data-ready callback never ran.
	ErrNoInterrupt = errors.New("data ready interrupt never fired")
	// ErrWorkerExit means the worker ended with an unexpected exit status.
	ErrWorkerExit = errors.New("unexpected worker exit status")
)
