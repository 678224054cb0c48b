package ledger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/user"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	processIDTemplateConstant        = "%s[%d]@%s"
	unknownUserConstant              = "unknown"
	unknownHostConstant              = "localhost"
	defaultKeepaliveIntervalConstant = 60 * time.Second
	missingLedgerMessageConstant     = "process lock requires a ledger"
	lockAlreadyHeldMessageConstant   = "process lock already held"
	acquireLockErrorTemplateConstant = "unable to acquire project lock: %w"
	lockAcquiredMessageConstant      = "project lock acquired"
	lockReleasedMessageConstant      = "project lock released"
	keepaliveFailedMessageConstant   = "project lock keepalive failed"
	releaseFailedMessageConstant     = "project lock release failed"
	logFieldRunTokenConstant         = "run_token"
)

var (
	// ErrMissingLedger indicates a process lock built without a ledger.
	ErrMissingLedger = errors.New(missingLedgerMessageConstant)
	// ErrLockAlreadyHeld indicates Acquire was called twice without Release.
	ErrLockAlreadyHeld = errors.New(lockAlreadyHeldMessageConstant)
)

// ProcessIdentity names one run against a project.
type ProcessIdentity struct {
	ProcessID string
	RunToken  string
}

// NewProcessIdentity builds user[pid]@host with a fresh run token.
func NewProcessIdentity() ProcessIdentity {
	userName := unknownUserConstant
	if currentUser, userError := user.Current(); userError == nil && len(currentUser.Username) > 0 {
		userName = currentUser.Username
	}
	hostName := unknownHostConstant
	if resolvedHost, hostError := os.Hostname(); hostError == nil && len(resolvedHost) > 0 {
		hostName = resolvedHost
	}
	return ProcessIdentity{
		ProcessID: fmt.Sprintf(processIDTemplateConstant, userName, os.Getpid(), hostName),
		RunToken:  uuid.NewString(),
	}
}

// ProcessLockOptions configures a ProcessLock.
type ProcessLockOptions struct {
	KeepaliveInterval time.Duration
	Logger            *zap.Logger
}

// ProcessLock holds the project run lock and renews it in the background until released.
type ProcessLock struct {
	ledger            Ledger
	identity          ProcessIdentity
	keepaliveInterval time.Duration
	logger            *zap.Logger

	mutex         sync.Mutex
	stopKeepalive context.CancelFunc
	keepaliveDone chan struct{}
}

// NewProcessLock validates collaborators and builds a ProcessLock.
func NewProcessLock(ledger Ledger, identity ProcessIdentity, options ProcessLockOptions) (*ProcessLock, error) {
	if ledger == nil {
		return nil, ErrMissingLedger
	}
	interval := options.KeepaliveInterval
	if interval <= 0 {
		interval = defaultKeepaliveIntervalConstant
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProcessLock{ledger: ledger, identity: identity, keepaliveInterval: interval, logger: logger}, nil
}

// Identity returns the run identity holding the lock.
func (lock *ProcessLock) Identity() ProcessIdentity {
	return lock.identity
}

// Acquire takes the project lock and starts renewing it.
func (lock *ProcessLock) Acquire(executionContext context.Context) error {
	lock.mutex.Lock()
	defer lock.mutex.Unlock()
	if lock.stopKeepalive != nil {
		return ErrLockAlreadyHeld
	}

	if startError := lock.ledger.StartProcess(executionContext, lock.identity, true); startError != nil {
		return fmt.Errorf(acquireLockErrorTemplateConstant, startError)
	}

	keepaliveContext, cancel := context.WithCancel(context.WithoutCancel(executionContext))
	lock.stopKeepalive = cancel
	lock.keepaliveDone = make(chan struct{})
	go lock.keepalive(keepaliveContext, lock.keepaliveDone)

	lock.logger.Info(lockAcquiredMessageConstant,
		zap.String(logFieldProcessConstant, lock.identity.ProcessID),
		zap.String(logFieldRunTokenConstant, lock.identity.RunToken),
	)
	return nil
}

// Release stops renewal and ends the process record. Ledger failures are logged, not returned.
func (lock *ProcessLock) Release(executionContext context.Context) {
	lock.mutex.Lock()
	defer lock.mutex.Unlock()
	if lock.stopKeepalive == nil {
		return
	}
	lock.stopKeepalive()
	<-lock.keepaliveDone
	lock.stopKeepalive = nil
	lock.keepaliveDone = nil

	if endError := lock.ledger.EndProcess(context.WithoutCancel(executionContext), lock.identity); endError != nil {
		lock.logger.Warn(releaseFailedMessageConstant, zap.String(logFieldProcessConstant, lock.identity.ProcessID), zap.Error(endError))
		return
	}
	lock.logger.Info(lockReleasedMessageConstant, zap.String(logFieldProcessConstant, lock.identity.ProcessID))
}

func (lock *ProcessLock) keepalive(executionContext context.Context, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(lock.keepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-executionContext.Done():
			return
		case <-ticker.C:
			if updateError := lock.ledger.UpdateProcess(executionContext, lock.identity); updateError != nil {
				lock.logger.Warn(keepaliveFailedMessageConstant, zap.String(logFieldProcessConstant, lock.identity.ProcessID), zap.Error(updateError))
			}
		}
	}
}
