package pow

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mosaicnetworks/murmur/src/common"
	"github.com/mosaicnetworks/murmur/src/crypto"
	"github.com/mosaicnetworks/murmur/src/store"
	"github.com/mosaicnetworks/murmur/src/wire"
)

// AckSize is the length of the random body of acknowledgement objects.
const AckSize = 32

// Offerer pushes locally produced objects to the network.
type Offerer interface {
	Offer(iv wire.InventoryVector)
}

// Service runs nonce searches and handles their results. Pending work is
// kept in the ProofOfWorkQueue until it has been handled, so it can be
// resumed after a restart with DoMissingProofOfWork.
type Service struct {
	engine    Engine
	queue     store.ProofOfWorkQueue
	inventory store.Inventory
	messages  store.MessageRepository
	crypto    crypto.Cryptography
	offerer   Offerer
	metrics   *Metrics
	logger    *logrus.Entry
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running map[string]struct{}
	closed  bool
}

// NewService creates a Service. metrics may be nil.
func NewService(engine Engine,
	queue store.ProofOfWorkQueue,
	inventory store.Inventory,
	messages store.MessageRepository,
	c crypto.Cryptography,
	offerer Offerer,
	metrics *Metrics,
	logger *logrus.Entry) *Service {

	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Service{
		engine:    engine,
		queue:     queue,
		inventory: inventory,
		messages:  messages,
		crypto:    c,
		offerer:   offerer,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
		running:   make(map[string]struct{}),
	}
}

// DoProofOfWork queues obj and starts searching for its nonce. Difficulty
// below the network minimum is raised to it.
func (s *Service) DoProofOfWork(obj *wire.Object, nonceTrialsPerByte, extraBytes uint64) error {
	return s.submit(&store.WorkItem{
		Object:             obj,
		NonceTrialsPerByte: nonceTrialsPerByte,
		ExtraBytes:         extraBytes,
	})
}

// DoProofOfWorkWithAck starts the first stage of sending msg: the search for
// the nonce of its acknowledgement object. Once found, the message object is
// built around the finished ack, expiring at expiration, and goes through
// proof of work in turn with the recipient's difficulty.
func (s *Service) DoProofOfWorkWithAck(ack *wire.Object, nonceTrialsPerByte, extraBytes uint64, expiration int64, msg *store.Message) error {
	msg.Status = store.DoingProofOfWork
	return s.submit(&store.WorkItem{
		Object:             ack,
		NonceTrialsPerByte: nonceTrialsPerByte,
		ExtraBytes:         extraBytes,
		ExpirationTime:     expiration,
		Message:            msg,
	})
}

// DoMissingProofOfWork resumes the work left in the queue by a previous run
// once delay has elapsed.
func (s *Service) DoMissingProofOfWork(delay time.Duration) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-s.ctx.Done():
			return
		}

		pending := s.queue.ListPending()
		if len(pending) == 0 {
			return
		}
		s.logger.WithField("items", len(pending)).Info("Resuming proof of work")

		for _, h := range pending {
			item, err := s.queue.Get(h)
			if err != nil {
				s.logger.WithError(err).Warn("Failed to load pending proof of work")
				continue
			}
			s.start(item)
		}
	}()
}

// Running returns the number of searches in progress.
func (s *Service) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.running)
}

// Close cancels every search and waits for the workers to return. Queued
// items stay in the queue.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

func (s *Service) submit(item *store.WorkItem) error {
	if item.NonceTrialsPerByte < NetworkNonceTrialsPerByte {
		item.NonceTrialsPerByte = NetworkNonceTrialsPerByte
	}
	if item.ExtraBytes < NetworkExtraBytes {
		item.ExtraBytes = NetworkExtraBytes
	}

	if err := s.queue.Put(item); err != nil {
		return fmt.Errorf("queueing proof of work: %w", err)
	}
	s.start(item)
	return nil
}

func (s *Service) start(item *store.WorkItem) {
	initialHash := item.Object.InitialHash()
	key := hex.EncodeToString(initialHash)

	s.mu.Lock()
	if _, ok := s.running[key]; ok || s.closed {
		s.mu.Unlock()
		return
	}
	s.running[key] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	target := ObjectTarget(item.Object, item.NonceTrialsPerByte, item.ExtraBytes, s.now())

	s.logger.WithFields(logrus.Fields{
		"initial_hash": common.EncodeToString(initialHash[:8]),
		"target":       target,
		"type":         item.Object.Type(),
	}).Info("Doing proof of work")

	s.metrics.Started.Inc()
	s.metrics.Pending.Inc()

	go func() {
		defer s.wg.Done()
		defer func() {
			s.metrics.Pending.Dec()
			s.mu.Lock()
			delete(s.running, key)
			s.mu.Unlock()
		}()

		start := time.Now()
		nonce, err := s.engine.Calculate(s.ctx, initialHash, target)
		if err != nil {
			s.metrics.Cancelled.Inc()
			s.logger.WithError(err).Debug("Proof of work abandoned")
			return
		}
		s.metrics.Completed.Inc()
		s.logger.WithField("duration", time.Since(start)).Info("Proof of work done")

		s.onNonceCalculated(initialHash, nonce)
	}()
}

// onNonceCalculated finishes the work item identified by initialHash. The
// item leaves the queue whatever the outcome.
func (s *Service) onNonceCalculated(initialHash []byte, nonce []byte) {
	item, err := s.queue.Get(initialHash)
	if err != nil {
		s.logger.WithError(err).Error("Finished proof of work for unknown item")
		return
	}
	defer func() {
		if err := s.queue.Remove(initialHash); err != nil {
			s.logger.WithError(err).Error("Failed to remove finished proof of work")
		}
	}()

	if item.Message == nil {
		err = s.publish(item.Object, initialHash, nonce)
	} else {
		err = s.sendMessage(item, nonce)
	}
	if err != nil {
		s.logger.WithError(err).Error("Failed to handle proof of work result")
	}
}

// publish stores and offers a finished object, marking the message it
// carries as sent if there is one.
func (s *Service) publish(obj *wire.Object, initialHash []byte, nonce []byte) error {
	if err := obj.SetNonce(nonce); err != nil {
		return err
	}
	iv, _ := obj.InventoryVector()

	msg, err := s.messages.GetMessage(initialHash)
	switch {
	case err == nil:
		msg.InventoryVector = iv[:]
		msg.Status = store.Sent
		msg.SentTime = s.now().Unix()
		if err := s.messages.SaveMessage(msg); err != nil {
			return fmt.Errorf("saving message: %w", err)
		}
	case !common.IsStore(err, common.KeyNotFound):
		return err
	}

	if err := s.inventory.StoreObject(obj); err != nil {
		return fmt.Errorf("storing object: %w", err)
	}
	s.offerer.Offer(iv)
	return nil
}

// sendMessage builds the object carrying item.Message around the finished
// acknowledgement and starts its proof of work. The signature covers the
// object header followed by the unencrypted body.
func (s *Service) sendMessage(item *store.WorkItem, nonce []byte) error {
	if err := item.Object.SetNonce(nonce); err != nil {
		return err
	}
	msg := item.Message
	ack := wire.EncodeMessage(item.Object)

	var body bytes.Buffer
	body.Write(msg.Content)
	wire.WriteVarBytes(&body, ack)

	payload := &wire.Msg{}
	obj := wire.NewObject(item.ExpirationTime, msg.Stream, 1, payload)

	signed := append(obj.PayloadBytesWithoutNonce(), body.Bytes()...)
	sig, err := s.crypto.Sign(signed, msg.SigningKey)
	if err != nil {
		return fmt.Errorf("signing message: %w", err)
	}
	wire.WriteVarBytes(&body, sig)

	plaintext := body.Bytes()
	if len(msg.RecipientKey) > 0 {
		plaintext, err = s.crypto.Encrypt(plaintext, msg.RecipientKey)
		if err != nil {
			return fmt.Errorf("encrypting message: %w", err)
		}
	}
	payload.Encrypted = plaintext

	msg.InitialHash = obj.InitialHash()
	msg.Status = store.DoingProofOfWork
	if err := s.messages.SaveMessage(msg); err != nil {
		return fmt.Errorf("saving message: %w", err)
	}

	return s.DoProofOfWork(obj, msg.NonceTrialsPerByte, msg.ExtraBytes)
}

// NewAckObject returns an acknowledgement object with a random body. The
// recipient of a message publishes it to confirm receipt.
func NewAckObject(c crypto.Cryptography, stream uint64, expires int64) *wire.Object {
	return wire.NewObject(expires, stream, 1, &wire.Msg{Encrypted: c.RandomBytes(AckSize)})
}
