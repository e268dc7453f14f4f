package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/easelhq/easel/internal/config"
	"github.com/easelhq/easel/internal/redis"
	"github.com/easelhq/easel/internal/sockets"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check reachability of the configured workspace endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(config.GetConfigPath())
		if err != nil {
			return err
		}
		endpoints := map[string]string{
			sockets.ChannelChat:   cfg.Endpoints.Chat,
			sockets.ChannelAudio:  cfg.Endpoints.Audio,
			sockets.ChannelBridge: cfg.Endpoints.Bridge,
		}
		for name, endpoint := range endpoints {
			conn, err := sockets.WebsocketDialer(endpoint)
			if err != nil {
				fmt.Printf("%-10s %s  unreachable (%v)\n", name, endpoint, err)
				continue
			}
			conn.Close()
			fmt.Printf("%-10s %s  ok\n", name, endpoint)
		}

		redis.Init(redis.Config{URL: cfg.Redis.URL, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer redis.Close()
		if redis.IsAvailable() {
			fmt.Printf("%-10s %s  ok\n", "redis", cfg.Redis.URL)
		} else {
			fmt.Printf("%-10s cache unavailable (summaries and persona uncached)\n", "redis")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
