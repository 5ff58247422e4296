package main

import (
	"context"
	"net"

	"github.com/spf13/cobra"

	"github.com/pesit-e/pesitengine/internal/driver"
	"github.com/pesit-e/pesitengine/internal/logging"
	"github.com/pesit-e/pesitengine/internal/session"
	"github.com/pesit-e/pesitengine/internal/storage"
	syncpkg "github.com/pesit-e/pesitengine/internal/sync"
	"github.com/pesit-e/pesitengine/internal/wire"
)

var sendCmd = &cobra.Command{
	Use:   "send <filename>",
	Short: "Push a file from local storage to the remote server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runClient(cmd, args[0], driver.PushFile)
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <filename>",
	Short: "Pull a file from the remote server into local storage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runClient(cmd, args[0], driver.PullFile)
	},
}

func init() {
	for _, c := range []*cobra.Command{sendCmd, fetchCmd} {
		c.Flags().String("remote_addr", "localhost:6969", "server address to connect to")
		c.Flags().String("demander_id", "PESITCLI", "PI_03 identity to present")
		c.Flags().String("server_id", "PESITSRV", "PI_04 identity expected of the server")
		c.Flags().String("password", "", "PI_05 access-control password")
		c.Flags().String("storage_root", "./data", "root directory for local storage")
		c.Flags().Int("record_length", 0, "PI_32 record length (0 = streamed)")
		c.Flags().Int("max_entity_size", 4096, "max FPDU entity size to propose")
		c.Flags().Int("sync_interval_kb", 1024, "KB of file data between sync points")
		c.Flags().Bool("restart", false, "resume from the last recorded sync point")
	}
}

type fileOp func(context.Context, *session.Context, storage.ObjectStore, driver.FileConfig, syncpkg.RestartStore) error

func runClient(cmd *cobra.Command, filename string, op fileOp) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := logging.New(logging.Options{Level: cfg.LogLevel, Encoding: cfg.LogEncoding})
	defer logger.Sync()

	remoteAddr, _ := cmd.Flags().GetString("remote_addr")
	demanderID, _ := cmd.Flags().GetString("demander_id")
	password, _ := cmd.Flags().GetString("password")
	recordLength, _ := cmd.Flags().GetInt("record_length")
	restart, _ := cmd.Flags().GetBool("restart")

	conn, err := net.Dial("tcp", remoteAddr)
	if err != nil {
		return err
	}
	defer conn.Close()

	sess, err := driver.Dial(conn, driver.DialConfig{
		DemanderID:     demanderID,
		ServerID:       cfg.ServerID,
		Password:       []byte(password),
		MaxEntitySize:  cfg.MaxEntitySize,
		SyncIntervalKB: uint16(cfg.SyncIntervalKB),
	}, logger)
	if err != nil {
		return err
	}
	defer sess.Close()

	store := storage.NewLocalStore(cfg.StorageRoot)
	err = op(context.Background(), sess, store, driver.FileConfig{
		Filename:       filename,
		RecordLength:   recordLength,
		MaxEntitySize:  cfg.MaxEntitySize,
		SyncIntervalKB: uint16(cfg.SyncIntervalKB),
		Restart:        restart,
	}, syncpkg.NewMemoryRestartStore())
	if err != nil {
		return err
	}

	_, err = sess.SendAndAwaitAck(wire.RELEASE, 0, 0, nil, wire.RELCONF)
	return err
}
