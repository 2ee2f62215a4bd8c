package cmd

import (
	"github.com/spf13/cobra"

	"github.com/BioHazard786/Warprun/internal/ui"
)

var hostCmd = &cobra.Command{
	Use:     "host [room-id]",
	Aliases: []string{"h"},
	Short:   "Create a room and wait for a peer",
	Long: `Create a room on the signaling relay and wait for a peer to join.
The relay picks a memorable room ID when none is given.

Examples:
  warprun host
  warprun host ABCDEF`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var roomID string
		if len(args) == 1 {
			roomID = args[0]
		}
		return host(cmd, roomID)
	},
}

func host(cmd *cobra.Command, roomID string) error {
	ctx := cmd.Context()

	sp := ui.NewConnectionSpinner("Connecting to server...")
	sp.Start()
	defer sp.Stop()

	session, err := NewSession(ctx, cfg, newSandbox(), logger)
	if err != nil {
		return err
	}
	defer session.Close()

	sp.UpdateMessage("Creating room...")
	if err := session.Peer.CreateRoom(roomID); err != nil {
		return err
	}

	roomID, err = session.AwaitRoom(ctx)
	sp.Stop()
	if err != nil {
		return err
	}
	ui.NewRoomInfo(roomID, cfg.GetRoomLink(roomID)).Render()

	stopSpinner := ui.RunWaitingSpinner("Waiting for peer to join...")
	err = session.AwaitConnected(ctx)
	stopSpinner()
	if err != nil {
		return err
	}
	ui.PrintConnectedf("Peer connected to room %s", roomID)

	return runConsole(ctx, session)
}

func init() {
	rootCmd.AddCommand(hostCmd)
}
