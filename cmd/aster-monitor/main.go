// aster-monitor is a terminal dashboard for a running asterd. It charts the
// live joint positions from the WebSocket stream and shows stiffness,
// diagnostics and loop statistics alongside.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/asterworks/go-aster/internal/httpc"
	"github.com/asterworks/go-aster/pkg/telemetry"
)

// feed pulls the driver's telemetry topics over WebSocket and hands the
// latest samples to the UI through buffered channels. Each topic reconnects
// on its own when the stream drops.
type feed struct {
	addr string

	joints chan telemetry.JointState
	stiffs chan telemetry.Stiffness
	diags  chan telemetry.Report
	logs   chan string
}

func newFeed(addr string) *feed {
	return &feed{
		addr:   addr,
		joints: make(chan telemetry.JointState, 1),
		stiffs: make(chan telemetry.Stiffness, 1),
		diags:  make(chan telemetry.Report, 1),
		logs:   make(chan string, 10),
	}
}

func (f *feed) start(ctx context.Context) {
	go stream(ctx, f, "joint_states", f.joints)
	go stream(ctx, f, "stiffnesses", f.stiffs)
	go stream(ctx, f, "diagnostics", f.diags)
}

func (f *feed) wsURL(topic string) string {
	return fmt.Sprintf("ws://%s/ws/%s", f.addr, topic)
}

func (f *feed) log(format string, args ...any) {
	msg := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
	select {
	case f.logs <- msg:
	default:
	}
}

// stream keeps one topic subscription alive, redialing with a short pause
// after any failure. Samples overwrite the previous one when the UI lags.
func stream[T any](ctx context.Context, f *feed, topic string, ch chan T) {
	for ctx.Err() == nil {
		s, err := telemetry.Dial(f.wsURL(topic))
		if err != nil {
			f.log("%s: %v", topic, err)
			if !pause(ctx, 2*time.Second) {
				return
			}
			continue
		}
		f.log("%s stream connected", topic)

		for {
			var v T
			if err := s.Read(&v); err != nil {
				f.log("%s stream dropped: %v", topic, err)
				s.Close()
				break
			}
			latest(ch, v)
		}
	}
}

// latest delivers v, displacing an unconsumed older sample.
func latest[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}

func pause(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// driverStatus mirrors asterd's /api/status response.
type driverStatus struct {
	Connected   bool     `json:"connected"`
	Robot       string   `json:"robot"`
	Stiffness   float64  `json:"stiffness"`
	Controllers []string `json:"controllers"`
	Stats       struct {
		Ticks       uint64  `json:"ticks"`
		ReadErrors  uint64  `json:"read_errors"`
		WriteErrors uint64  `json:"write_errors"`
		MeanTick    float64 `json:"mean_tick_seconds"`
		StdevTick   float64 `json:"stdev_tick_seconds"`
	} `json:"stats"`
}

func fetchStatus(addr string) tea.Msg {
	resp, err := httpc.Get(fmt.Sprintf("http://%s/api/status", addr))
	if err != nil {
		return statusErrMsg{err}
	}
	defer resp.Body.Close()

	var st driverStatus
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return statusErrMsg{err}
	}
	return statusMsg(st)
}

func main() {
	addr := flag.String("addr", "127.0.0.1:8080", "asterd web address (host:port)")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFeed(*addr)
	f.start(ctx)

	p := tea.NewProgram(initialModel(f), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("monitor error: %v", err)
	}
}
