// Package interrupt implements the Btrieve interrupt service, marshalling
// command structures found in guest memory into Engine calls and their
// results back into guest buffers.
package interrupt

import (
	errs "errors"
	"fmt"
	"slices"
	"sync"

	"github.com/go-stdlog/stdlog"

	"github.com/heyvito/btrieve"
	"github.com/heyvito/btrieve/errors"
	"github.com/heyvito/btrieve/internal/metrics"
	"github.com/heyvito/btrieve/memory"
)

const maxFileName = 128

// Handler services Btrieve calls issued by a single guest channel. Files
// opened through a Handler are owned by it, and closed by Reset or Close.
type Handler struct {
	registry *btrieve.Registry
	memory   memory.Core
	log      stdlog.Logger

	mu    sync.Mutex
	owned map[btrieve.Token]struct{}
}

func NewHandler(registry *btrieve.Registry, mem memory.Core, logger stdlog.Logger) *Handler {
	if logger == nil {
		logger = stdlog.Discard
	}
	return &Handler{
		registry: registry,
		memory:   mem,
		log:      logger.Named("interrupt"),
		owned:    map[btrieve.Token]struct{}{},
	}
}

func (h *Handler) Vector() byte { return Vector }

// call is a command being serviced, along with the address it was read from.
type call struct {
	Command
	at memory.FarPtr
}

// Handle services the command structure at ds:dx. The resulting status is
// written to the status word referenced by the command, and returned. Faults
// raised while servicing the call are reported as IOError and never reach
// the caller.
func (h *Handler) Handle(ds, dx uint16) (status errors.Status) {
	defer metrics.Measure(metrics.InterruptHandleLatency)()
	metrics.Simple(metrics.InterruptHandleCalls, 1)
	defer func() {
		if r := recover(); r != nil {
			h.log.Error(fmt.Errorf("%v", r), "Interrupt aborted", "command", memory.NewFarPtr(ds, dx).String())
			metrics.Simple(metrics.InterruptFailures, 1)
			status = errors.IOError
		}
	}()

	at := memory.NewFarPtr(ds, dx)
	c := &call{Command: DecodeCommand(h.memory.GetArray(at, CommandLength)), at: at}

	if c.InterfaceID != InterfaceID {
		h.log.Warning("Client specified invalid interface id", "interface_id", fmt.Sprintf("%04X", c.InterfaceID))
		status = errors.InvalidInterface
	} else {
		status = h.dispatch(c)
	}
	if status != errors.Success {
		metrics.Simple(metrics.InterruptFailures, 1)
	}
	h.memory.SetWord(c.StatusCode, uint16(status))
	return status
}

func (h *Handler) dispatch(c *call) (status errors.Status) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error(fmt.Errorf("%v", r), "Operation aborted", "operation", c.Operation.String())
			status = errors.IOError
		}
	}()

	err := h.perform(c)
	status = errors.StatusOf(err)
	if err != nil {
		h.log.Debug("Operation failed",
			"operation", c.Operation.String(),
			"status", status.String(),
			"error", err.Error(),
		)
	}
	return status
}

func (h *Handler) perform(c *call) error {
	switch c.Operation {
	case Open:
		return h.open(c)
	case Create:
		return h.create(c)
	case Reset:
		return h.Close()
	case Close, Stat, Insert, Update, Delete, GetPosition, GetDirectChunkOrRecord,
		StepFirst, StepLast, StepNext, StepPrevious:
	default:
		if _, _, ok := c.Operation.seekOperator(); !ok {
			return h.unsupported(c)
		}
	}

	token := btrieve.TokenFromPositionBlock(h.memory.GetArray(c.PositionBlock, btrieve.TokenSize))
	e, err := h.registry.Lookup(token)
	if err != nil {
		return err
	}

	switch c.Operation {
	case Close:
		return h.close(token)
	case Stat:
		return h.stat(c, e)
	case Insert:
		return h.insert(c, e)
	case Update:
		return h.update(c, e)
	case Delete:
		return e.Delete()
	case GetPosition:
		return h.getPosition(c, e)
	case GetDirectChunkOrRecord:
		return h.getDirect(c, e)
	case StepFirst:
		return h.step(c, e, e.StepFirst)
	case StepLast:
		return h.step(c, e, e.StepLast)
	case StepNext:
		return h.step(c, e, e.StepNext)
	case StepPrevious:
		return h.step(c, e, e.StepPrevious)
	}
	return h.seek(c, e)
}

func (h *Handler) unsupported(c *call) error {
	metrics.Simple(metrics.InterruptUnsupportedOperations, 1)
	h.log.Warning("Unsupported operation", "operation", c.Operation.String())
	return errors.InvalidOperation
}

func (h *Handler) fileName(c *call) (string, error) {
	name := string(h.memory.GetString(c.KeyBuffer, maxFileName))
	if name == "" {
		return "", errors.InvalidFileName
	}
	return name, nil
}

func (h *Handler) open(c *call) error {
	name, err := h.fileName(c)
	if err != nil {
		return err
	}
	positionBlock := h.memory.GetArray(c.PositionBlock, btrieve.PositionBlockSize)
	token, _, err := h.registry.Open(name, positionBlock)
	if err != nil {
		return err
	}
	h.memory.SetArray(c.PositionBlock, positionBlock[:btrieve.TokenSize])

	h.mu.Lock()
	h.owned[token] = struct{}{}
	h.mu.Unlock()

	h.log.Info("Opened file", "name", name, "mode", c.KeyNumber, "token", token.String())
	return nil
}

func (h *Handler) create(c *call) error {
	name, err := h.fileName(c)
	if err != nil {
		return err
	}
	schema, err := btrieve.SchemaFromStat(h.memory.GetArray(c.DataBuffer, int(c.DataBufferLength)))
	if err != nil {
		return fmt.Errorf("%w: %w", errors.InvalidOperation, err)
	}
	return h.registry.Create(name, schema)
}

func (h *Handler) close(token btrieve.Token) error {
	h.mu.Lock()
	delete(h.owned, token)
	h.mu.Unlock()
	return h.registry.Close(token)
}

// Close closes every file opened through the handler, as required when the
// guest channel goes away.
func (h *Handler) Close() error {
	h.mu.Lock()
	tokens := make([]btrieve.Token, 0, len(h.owned))
	for t := range h.owned {
		tokens = append(tokens, t)
	}
	clear(h.owned)
	h.mu.Unlock()

	var err error
	for _, t := range tokens {
		if closeErr := h.registry.Close(t); closeErr != nil {
			h.log.Error(closeErr, "Failed closing file", "token", t.String())
			err = errs.Join(err, closeErr)
		}
	}
	return err
}

// fits ensures the data buffer is able to hold n bytes.
func (c *call) fits(n int) error {
	if int(c.DataBufferLength) < n {
		return errors.DataBufferTooShortError{Required: n, Provided: int(c.DataBufferLength)}
	}
	return nil
}

// key returns the key addressed by the command, ensuring the key buffer is
// able to hold its value.
func (c *call) key(e btrieve.Engine) (*btrieve.Key, error) {
	k, ok := e.Schema().Key(int(c.KeyNumber))
	if !ok {
		return nil, errors.InvalidKeyNumberError{KeyNumber: int(c.KeyNumber)}
	}
	if int(c.KeyBufferLength) < k.Length() {
		return nil, errors.KeyBufferTooShortError{Required: k.Length(), Provided: int(c.KeyBufferLength)}
	}
	return k, nil
}

// setDataLength patches the data buffer length of the command structure
// itself with the amount of bytes produced.
func (h *Handler) setDataLength(c *call, n int) {
	h.memory.SetWord(c.at.Add(int(commandOffsets.DataBufferLength)), uint16(n))
}

func (h *Handler) writeRecord(c *call, rec *btrieve.Record) {
	h.memory.SetArray(c.DataBuffer, rec.Data)
	h.setDataLength(c, len(rec.Data))
}

func (h *Handler) echoKey(c *call, key []byte) {
	if n := min(len(key), int(c.KeyBufferLength)); n > 0 {
		h.memory.SetArray(c.KeyBuffer, key[:n])
	}
}

func (h *Handler) stat(c *call, e btrieve.Engine) error {
	// Extended files are not supported, so the extension name is always
	// reported empty.
	if c.KeyBufferLength > 0 {
		h.memory.SetByte(c.KeyBuffer, 0)
	}
	stat := e.Stat()
	if err := c.fits(len(stat)); err != nil {
		return err
	}
	h.memory.SetArray(c.DataBuffer, stat)
	h.setDataLength(c, len(stat))
	return nil
}

func (h *Handler) insert(c *call, e btrieve.Engine) error {
	n := e.Schema().RecordLength
	if err := c.fits(n); err != nil {
		return err
	}
	rec, err := e.Insert(h.memory.GetArray(c.DataBuffer, n), int(c.KeyBufferLength))
	if err != nil {
		return err
	}
	h.writeRecord(c, rec)
	h.echoKey(c, rec.Key)
	return nil
}

func (h *Handler) update(c *call, e btrieve.Engine) error {
	n := e.Schema().RecordLength
	if err := c.fits(n); err != nil {
		return err
	}
	rec, err := e.Update(h.memory.GetArray(c.DataBuffer, n), int(c.KeyNumber), int(c.KeyBufferLength))
	if err != nil {
		return err
	}
	h.setDataLength(c, len(rec.Data))
	h.echoKey(c, rec.Key)
	return nil
}

func (h *Handler) getPosition(c *call, e btrieve.Engine) error {
	if err := c.fits(4); err != nil {
		return err
	}
	pos, err := e.GetPosition()
	if err != nil {
		return err
	}
	h.memory.SetDWord(c.DataBuffer, pos)
	h.setDataLength(c, 4)
	return nil
}

// getDirect reads the physical offset held by the first four bytes of the
// data buffer, and replaces it with the record stored there.
func (h *Handler) getDirect(c *call, e btrieve.Engine) error {
	if err := c.fits(max(e.Schema().RecordLength, 4)); err != nil {
		return err
	}
	if c.KeyNumber >= 0 {
		if _, err := c.key(e); err != nil {
			return err
		}
	}
	rec, err := e.GetDirect(h.memory.GetDWord(c.DataBuffer), int(c.KeyNumber))
	if err != nil {
		return err
	}
	h.writeRecord(c, rec)
	h.echoKey(c, rec.Key)
	return nil
}

func (h *Handler) step(c *call, e btrieve.Engine, fn func() (*btrieve.Record, error)) error {
	if err := c.fits(e.Schema().RecordLength); err != nil {
		return err
	}
	rec, err := fn()
	if err != nil {
		return err
	}
	h.writeRecord(c, rec)
	return nil
}

func (h *Handler) seek(c *call, e btrieve.Engine) error {
	op, acquire, _ := c.Operation.seekOperator()
	k, err := c.key(e)
	if err != nil {
		return err
	}
	if acquire {
		if err = c.fits(e.Schema().RecordLength); err != nil {
			return err
		}
	}

	var probe []byte
	if usesProbe(op) {
		probe = h.memory.GetArray(c.KeyBuffer, k.Length())
		if !k.Composite() && k.Segments[0].EffectiveType() == btrieve.Zstring {
			if i := slices.Index(probe, 0); i >= 0 {
				probe = probe[:i+1]
			}
		}
	}

	rec, err := e.Seek(int(c.KeyNumber), probe, op, true)
	if err != nil {
		return err
	}
	if acquire {
		h.writeRecord(c, rec)
	}
	h.echoKey(c, rec.Key)
	return nil
}
