package core

// Validator serializes all block validation through a single actor loop,
// grounded on the original implementation's run()/timeout() pair: a waiting
// FIFO of hashes the Coordinator wants validated, an available map of
// bodies that have arrived out of order, and a per-hash timer that fires
// Timeout if a block never shows up.

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
)

type validatorMsg interface{ isValidatorMsg() }

type waitMsg struct{ Hashes []Hash32 }
type validateMsg struct{ Block Block }
type validatorTimeoutMsg struct{ Hash Hash32 }

func (waitMsg) isValidatorMsg()           {}
func (validateMsg) isValidatorMsg()       {}
func (validatorTimeoutMsg) isValidatorMsg() {}

const defaultValidatorTimeout = 2 * time.Second

// Validator owns the waiting/available protocol and the block-validation
// obligations: header well-formedness, Merkle root agreement, and
// persistence through a StorageAdapter. Persisting validated blocks here
// (rather than letting the Coordinator do it after being notified) is this
// client's resolution of where storage belongs: the Validator is the only
// component that has already proven a block's contents are internally
// consistent, so it is the natural owner of the write.
type Validator struct {
	clock   clock.Clock
	timeout time.Duration
	store   StorageAdapter
	log     *logrus.Entry

	msgs chan validatorMsg

	// onTimeout is invoked directly on the actor loop when a waited-for hash
	// never arrives; the Coordinator's hook forwards it to its own event loop
	// with a non-blocking send and uses it to trigger peer replacement (§4.3).
	onTimeout func(Hash32)

	// onValidated is invoked after a block is successfully persisted, so the
	// Coordinator can advance its notion of the chain tip and keep the
	// download pipeline moving.
	onValidated func(Block)
}

// NewValidator builds a Validator. clk may be a real clock.New() in
// production or a mock clock in tests; timeout <= 0 uses
// defaultValidatorTimeout. onTimeout and onValidated may both be nil.
func NewValidator(store StorageAdapter, timeout time.Duration, clk clock.Clock, onTimeout func(Hash32), log *logrus.Entry) *Validator {
	if timeout <= 0 {
		timeout = defaultValidatorTimeout
	}
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Validator{
		clock:     clk,
		timeout:   timeout,
		store:     store,
		log:       log,
		msgs:      make(chan validatorMsg, 64),
		onTimeout: onTimeout,
	}
}

// OnValidated registers a callback invoked after each block this Validator
// persists. Must be called before Run starts consuming messages.
func (v *Validator) OnValidated(fn func(Block)) { v.onValidated = fn }

// Wait enqueues hashes the caller expects to see validated, in order.
func (v *Validator) Wait(hashes []Hash32) { v.msgs <- waitMsg{Hashes: hashes} }

// Validate delivers a block body that has arrived; it becomes available for
// the actor loop once it reaches the head of the waiting queue.
func (v *Validator) Validate(b Block) { v.msgs <- validateMsg{Block: b} }

// Run drives the actor loop until ctx is canceled. It blocks on its first
// Wait message before entering the main loop, matching the original
// implementation's startup sequence.
func (v *Validator) Run(ctx context.Context) {
	var waiting []Hash32
	available := make(map[Hash32]Block)

	for len(waiting) == 0 {
		select {
		case <-ctx.Done():
			return
		case m := <-v.msgs:
			if w, ok := m.(waitMsg); ok {
				waiting = append(waiting, w.Hashes...)
				v.log.WithField("waiting", len(waiting)).Debug("validator: waiting list seeded")
			} else {
				v.log.Warn("validator: expected a Wait message first")
			}
		}
	}

	for {
		if ctx.Err() != nil {
			return
		}
		if len(waiting) == 0 {
			select {
			case <-ctx.Done():
				return
			case m := <-v.msgs:
				switch msg := m.(type) {
				case waitMsg:
					waiting = append(waiting, msg.Hashes...)
				case validateMsg:
					available[msg.Block.ID()] = msg.Block
				}
			}
			continue
		}
		next := waiting[0]
		waiting = waiting[1:]

		if _, ok := available[next]; !ok {
			v.log.WithField("hash", next.DisplayString()).Debug("validator: block not yet available")
			v.startTimeout(next)

			for {
				if _, ok := available[next]; ok {
					break
				}
				select {
				case <-ctx.Done():
					return
				case m := <-v.msgs:
					switch msg := m.(type) {
					case waitMsg:
						waiting = append(waiting, msg.Hashes...)
					case validateMsg:
						available[msg.Block.ID()] = msg.Block
					case validatorTimeoutMsg:
						if msg.Hash == next {
							if _, ok := available[next]; !ok {
								v.log.WithField("hash", next.DisplayString()).Error("validator: timed out waiting for block")
								if v.onTimeout != nil {
									v.onTimeout(next)
								}
								v.startTimeout(next)
							}
						}
					}
				}
			}
		}

		blk := available[next]
		delete(available, next)
		if err := v.validateAndStore(blk); err != nil {
			MetricBlocksRejected.Inc()
			v.log.WithError(err).WithField("hash", next.DisplayString()).Error("validator: block rejected")
		} else if v.onValidated != nil {
			v.onValidated(blk)
		}
	}
}

// startTimeout spawns the per-hash timer goroutine. It fires once per call;
// the wait loop re-arms a fresh one each time the hash is still unavailable
// after a timeout, so a replacement peer that also stalls produces another
// Timeout rather than leaving the loop stuck on next forever.
func (v *Validator) startTimeout(hash Hash32) {
	go func() {
		timer := v.clock.Timer(v.timeout)
		<-timer.C
		select {
		case v.msgs <- validatorTimeoutMsg{Hash: hash}:
		default:
		}
	}()
}

// validateAndStore checks the block's structural, Merkle and script
// obligations and, if it passes, persists it. Returns a Semantic error for
// an invalid block and a Storage error if persistence or a previous-output
// lookup fails.
func (v *Validator) validateAndStore(b Block) error {
	if !b.IsValid() {
		return Semantic(ErrScriptInvalid)
	}
	if err := v.validateScripts(b); err != nil {
		return err
	}
	has, err := v.store.HasBlock(b.ID())
	if err != nil {
		return Storage(err)
	}
	if has {
		return nil
	}
	if err := v.store.StoreBlock(b); err != nil {
		return err
	}
	return nil
}

// validateScripts realizes §4.4 step 3: for every input of every
// transaction but the coinbase, look up the referenced previous output and
// run the Script Engine against (ScriptSig, ScriptPubKey); every input must
// pass.
func (v *Validator) validateScripts(b Block) error {
	for i, tx := range b.Transactions {
		if i == 0 {
			continue // coinbase has no previous output to verify against
		}
		for idx, in := range tx.Inputs {
			prevOut, found, err := v.store.Output(in.PrevTxHash, in.PrevIndex)
			if err != nil {
				return Storage(err)
			}
			if !found {
				return Semantic(ErrPrevOutputNotFound)
			}
			result := NewScript(tx, idx, prevOut, b.Header.Time).Exec()
			if !result.Valid() {
				return Semantic(ErrScriptInvalid)
			}
		}
	}
	return nil
}
