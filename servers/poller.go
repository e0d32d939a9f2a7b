package servers

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

const (
	// Upper bound of one readiness wait, in milliseconds.
	pollTimeoutMs = 1000
	// Sleep between checks while no connection is open.
	pollIdleInterval = time.Second
)

// Poller watches every open connection's socket from a single goroutine
// and hands readiness to the owning connection. Connections that error or
// hang up get force-disconnected, which kicks off the reconnect policy
// through their disconnected event.
type Poller struct {
	registry *Registry
	log      *logrus.Logger

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewPoller creates a poller over the given registry.
func NewPoller(registry *Registry, logger *logrus.Logger) *Poller {
	return &Poller{
		registry: registry,
		log:      logger,
		stop:     make(chan struct{}),
	}
}

// Start launches the polling goroutine.
func (p *Poller) Start() {
	p.wg.Add(1)
	go p.loop()
}

// Stop terminates the polling goroutine and waits for it to exit.
func (p *Poller) Stop() {
	close(p.stop)
	p.wg.Wait()
}

func (p *Poller) stopped() bool {
	select {
	case <-p.stop:
		return true
	default:
		return false
	}
}

// idle waits out one idle interval unless stopped earlier.
func (p *Poller) idle() bool {
	select {
	case <-p.stop:
		return false
	case <-time.After(pollIdleInterval):
		return true
	}
}

func (p *Poller) loop() {
	defer p.wg.Done()
	p.log.Debugf("Poller started.")

	for !p.stopped() {
		fds := p.registry.OpenFds()
		if len(fds) == 0 {
			if !p.idle() {
				break
			}
			continue
		}

		pollSet := make([]unix.PollFd, len(fds))
		for i, fd := range fds {
			pollSet[i] = unix.PollFd{Fd: int32(fd), Events: unix.POLLIN | unix.POLLPRI}
		}

		ready, err := unix.Poll(pollSet, pollTimeoutMs)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			p.log.Errorf("Poll failed: %s", err)
			if !p.idle() {
				break
			}
			continue
		}
		if ready == 0 {
			continue
		}

		for _, pfd := range pollSet {
			if pfd.Revents == 0 {
				continue
			}
			conn := p.registry.byFdLookup(int(pfd.Fd))
			if conn == nil {
				// Removed between the snapshot and now.
				continue
			}
			// Errors and hangups drop the link even with data pending.
			if pfd.Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
				p.log.Warningf("Socket error on %s, dropping the link.", conn.ID())
				conn.Disconnect(true)
				continue
			}
			if pfd.Revents&(unix.POLLIN|unix.POLLPRI) != 0 {
				if !conn.pump() {
					p.log.Warningf("Server %s closed the link.", conn.ID())
					conn.Disconnect(true)
				}
			}
		}
	}

	p.log.Debugf("Poller exiting.")
}
