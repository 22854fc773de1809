package command

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/pkg/errors"
	"libdb.so/driftglow/internal/params"
)

// LinkID identifies a connected central.
type LinkID string

// Advertiser is the radio side of the channel. It is asked to advertise again
// whenever a link goes away so that a new central can connect.
type Advertiser interface {
	Advertise() error
}

// Saver saves a parameter snapshot to durable storage.
type Saver interface {
	Save(params.Snapshot) error
}

// Channel receives radio events and applies the commands they carry to the
// parameter store. Its methods are called from the radio stack and return
// quickly; only a save command touches storage.
type Channel struct {
	store      *params.Store
	saver      Saver
	advertiser Advertiser
	logger     *slog.Logger

	mu    sync.Mutex
	links map[LinkID]struct{}
}

// NewChannel creates a new command channel.
func NewChannel(store *params.Store, saver Saver, advertiser Advertiser, logger *slog.Logger) *Channel {
	return &Channel{
		store:      store,
		saver:      saver,
		advertiser: advertiser,
		logger:     logger,
		links:      make(map[LinkID]struct{}),
	}
}

// HandleConnect records the link as active.
func (c *Channel) HandleConnect(link LinkID) {
	c.mu.Lock()
	c.links[link] = struct{}{}
	n := len(c.links)
	c.mu.Unlock()

	c.logger.Info(
		"central connected",
		"link", link,
		"links", n)
}

// HandleDisconnect removes the link and restarts advertising.
func (c *Channel) HandleDisconnect(link LinkID) {
	c.mu.Lock()
	delete(c.links, link)
	n := len(c.links)
	c.mu.Unlock()

	c.logger.Info(
		"central disconnected",
		"link", link,
		"links", n)

	if err := c.advertiser.Advertise(); err != nil {
		c.logger.Warn(
			"failed to restart advertising",
			"error", err)
	}
}

// Connected returns true if at least one link is active.
func (c *Channel) Connected() bool {
	return c.Links() > 0
}

// Links returns the number of active links.
func (c *Channel) Links() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.links)
}

// HandleWrite decodes the payload written to the command characteristic and
// applies it. Short payloads are dropped. Nothing that goes wrong here is
// returned to the radio stack.
func (c *Channel) HandleWrite(payload []byte) {
	defer func() {
		if v := recover(); v != nil {
			c.logger.Error(
				"panic while handling command",
				"payload", fmt.Sprintf("%x", payload),
				"panic", v)
		}
	}()

	cmd, err := Decode(payload)
	if err != nil {
		if errors.Is(err, ErrShortPayload) {
			c.logger.Debug(
				"dropping short command",
				"payload", fmt.Sprintf("%x", payload))
		} else {
			c.logger.Warn(
				"failed to decode command",
				"error", err)
		}
		return
	}

	c.apply(cmd)
}

func (c *Channel) apply(cmd Command) {
	switch cmd := cmd.(type) {
	case SaveCommand:
		snapshot := c.store.Load()
		c.logger.Debug(
			"saving settings",
			"settings", snapshot)
		if err := c.saver.Save(snapshot); err != nil {
			c.logger.Error(
				"failed to save settings",
				"error", err)
		}

	case UpdateCommand:
		c.store.Store(cmd.Snapshot)
		c.logger.Debug(
			"applied update",
			"settings", cmd.Snapshot)

	default:
		c.logger.Warn(
			"ignoring unknown command",
			"kind", cmd.Kind())
	}
}
