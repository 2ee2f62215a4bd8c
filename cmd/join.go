package cmd

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/Warprun/internal/ui"
)

var joinCmd = &cobra.Command{
	Use:     "join <room-id|url>",
	Aliases: []string{"j"},
	Short:   "Join a peer's room",
	Long: `Join a room created with "warprun host" and connect to its owner.

Examples:
  warprun join ABCDEF
  warprun join https://warprun.example.com/r/ABCDEF
  warprun join ABCDEF --relay`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID, err := parseRoomInput(args[0])
		if err != nil {
			return err
		}
		return join(cmd, roomID)
	},
}

func join(cmd *cobra.Command, roomID string) error {
	ctx := cmd.Context()

	sp := ui.NewConnectionSpinner("Connecting to server...")
	sp.Start()
	defer sp.Stop()

	session, err := NewSession(ctx, cfg, newSandbox(), logger)
	if err != nil {
		return err
	}
	defer session.Close()

	sp.UpdateMessage(fmt.Sprintf("Connecting to peer in %s...", roomID))
	if err := session.Peer.JoinRoom(roomID); err != nil {
		return err
	}

	err = session.AwaitConnected(ctx)
	sp.Stop()
	if err != nil {
		return err
	}
	ui.PrintConnectedf("Connected to peer in room %s", roomID)

	return runConsole(ctx, session)
}

// parseRoomInput accepts a bare room ID or a room link.
func parseRoomInput(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("room ID cannot be empty")
	}

	if strings.Contains(input, "://") || strings.Contains(input, ".") {
		return extractRoomIDFromURL(input)
	}

	return input, nil
}

func extractRoomIDFromURL(urlStr string) (string, error) {
	if !strings.Contains(urlStr, "://") {
		urlStr = "https://" + urlStr
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", fmt.Errorf("parse URL: %w", err)
	}

	path := strings.TrimSuffix(parsedURL.Path, "/")
	parts := strings.Split(path, "/")

	for i, part := range parts {
		if part == "r" && i+1 < len(parts) && parts[i+1] != "" {
			return parts[i+1], nil
		}
	}

	return "", fmt.Errorf("could not extract room ID from URL: %s", urlStr)
}

func init() {
	rootCmd.AddCommand(joinCmd)
}
