package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BioHazard786/Warpdrop/meet/internal/call"
	"github.com/BioHazard786/Warpdrop/meet/internal/config"
	"github.com/BioHazard786/Warpdrop/meet/internal/journal"
	"github.com/BioHazard786/Warpdrop/meet/internal/logging"
	"github.com/BioHazard786/Warpdrop/meet/internal/media"
	"github.com/BioHazard786/Warpdrop/meet/internal/signaling"
	"github.com/BioHazard786/Warpdrop/meet/internal/transport"
	"github.com/BioHazard786/Warpdrop/meet/internal/ui"
	"github.com/spf13/cobra"
)

const authTimeout = 15 * time.Second

var (
	flagServer   string
	flagUser     int64
	flagSecret   string
	flagSTUN     string
	flagTURN     string
	flagTURNUser string
	flagTURNPass string
	flagRelay    bool
	flagJournal  string
)

var joinCmd = &cobra.Command{
	Use:     "join",
	Aliases: []string{"j"},
	Short:   "Join the call room",
	Long: `Connect to the signaling relay, authenticate and join the room.

Examples:
  meet join --user 7 --secret s3cret
  meet join --server wss://relay.example.com/ws --user 7 --secret s3cret
  meet join --turn turn.example.com --turn-user u --turn-pass p --relay`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(config.Options{
			SignalServer: flagServer,
			UserID:       flagUser,
			UserSecret:   flagSecret,
			STUNServer:   flagSTUN,
			TURNServer:   flagTURN,
			TURNUser:     flagTURNUser,
			TURNPass:     flagTURNPass,
			ForceRelay:   flagRelay,
			JournalPath:  flagJournal,
		})
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		return joinCall(cmd.Context(), cfg)
	},
}

// callStats is collected from manager callbacks while the call runs.
type callStats struct {
	mu       sync.Mutex
	peers    map[signaling.PeerID]bool
	failures int
}

func (s *callStats) observe(v call.View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range v.Board.Tiles {
		s.peers[t.Peer] = true
	}
}

func (s *callStats) fail() {
	s.mu.Lock()
	s.failures++
	s.mu.Unlock()
}

func joinCall(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	factory, err := transport.NewPionFactory(cfg.WebRTC(),
		transport.WithLoggerFactory(logging.PionFactory{Logger: slog.Default()}))
	if err != nil {
		return fmt.Errorf("create transport: %w", err)
	}

	local, err := media.NewLocal()
	if err != nil {
		return fmt.Errorf("create local media: %w", err)
	}
	go local.Silence(ctx)

	var recorder call.Recorder
	callID := "-"
	if cfg.JournalPath != "" {
		jw, err := journal.Create(cfg.JournalPath)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer jw.Close()
		recorder, callID = jw, jw.CallID()
	}

	client := signaling.NewClient(cfg.SignalServer, signaling.WithPingInterval(cfg.PingInterval))
	defer client.Close()

	authenticated := make(chan struct{}, 1)
	client.OnStatus(func(s signaling.Status) {
		if s == signaling.StatusOn {
			select {
			case authenticated <- struct{}{}:
			default:
			}
		}
	})

	spinner := ui.NewConnectionSpinner("Connecting to relay...")
	spinner.Start()
	if err := client.Connect(ctx, cfg.UserSecret); err != nil {
		spinner.Error("Could not reach the relay")
		return fmt.Errorf("connect to relay: %w", err)
	}
	spinner.UpdateMessage("Authenticating...")
	select {
	case <-authenticated:
		spinner.Success(fmt.Sprintf("Authenticated as peer %d", cfg.UserID))
	case <-time.After(authTimeout):
		spinner.Error("Authentication timed out")
		return errors.New("relay did not accept the credential")
	case <-ctx.Done():
		spinner.Stop()
		return ctx.Err()
	}

	stats := &callStats{peers: make(map[signaling.PeerID]bool)}
	var screen *ui.CallUI

	m := call.New(call.Options{
		Self:              cfg.UserID,
		Signaler:          client,
		Factory:           factory,
		Messages:          client.Messages(),
		Media:             local,
		Journal:           recorder,
		DisconnectedDelay: cfg.DisconnectedDelay,
		FailedDelay:       cfg.FailedDelay,
		OnView: func(v call.View) {
			stats.observe(v)
			screen.SetView(v)
		},
		OnFailure: func(err *call.OpError) {
			stats.fail()
			screen.Failure(err)
		},
	})
	screen = ui.NewCallUI(cfg.UserID, m, local)
	screen.JoinOnStart()
	client.OnStatus(m.HandleStatus)

	go func() {
		if err := m.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("call manager stopped", "err", err)
		}
	}()

	started := time.Now()
	uiErr := screen.Run()

	if err := m.Hangup(); err != nil && !errors.Is(err, call.ErrNotInCall) {
		slog.Debug("hang up on exit", "err", err)
	}
	m.Close()
	if uiErr != nil {
		return fmt.Errorf("run call screen: %w", uiErr)
	}

	stats.mu.Lock()
	summary := ui.CallSummary{
		CallID:   callID,
		Self:     int64(cfg.UserID),
		Peers:    len(stats.peers),
		Duration: time.Since(started),
		Failures: stats.failures,
	}
	stats.mu.Unlock()

	fmt.Println()
	ui.RenderCallSummary("📊 Call Summary", summary)
	return nil
}

func init() {
	rootCmd.AddCommand(joinCmd)

	joinCmd.Flags().StringVarP(&flagServer, "server", "S", "", "Signaling relay URL")
	joinCmd.Flags().Int64VarP(&flagUser, "user", "i", 0, "User id on the relay")
	joinCmd.Flags().StringVarP(&flagSecret, "secret", "k", "", "User secret")
	joinCmd.Flags().StringVarP(&flagSTUN, "stun", "s", "", "Custom STUN server")
	joinCmd.Flags().StringVarP(&flagTURN, "turn", "t", "", "Custom TURN server")
	joinCmd.Flags().StringVarP(&flagTURNUser, "turn-user", "u", "", "TURN username")
	joinCmd.Flags().StringVarP(&flagTURNPass, "turn-pass", "p", "", "TURN password")
	joinCmd.Flags().BoolVarP(&flagRelay, "relay", "r", false, "Force relay mode")
	joinCmd.Flags().StringVarP(&flagJournal, "journal", "j", "", "Record the call to this file")
}
