package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"sorter/internal/app"
	"sorter/internal/logger"
	"sorter/internal/service/actuator"
)

var actuateAngle int

var actuateCmd = &cobra.Command{
	Use:   "actuate <servo-id>",
	Short: "Send a manual set-angle command to one servo",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid servo id %q", args[0])
		}

		log, err := logger.NewLogger(cfg)
		if err != nil {
			return err
		}
		defer log.Close()

		client := app.ConnectMQTT(cfg, log)
		if client != nil {
			defer client.Disconnect()
		}

		dispatcher, err := app.NewDispatcher(cfg, client)
		if err != nil {
			return err
		}
		svc := actuator.NewService(dispatcher, cfg.MaxActuatorID, cfg.DefaultAngle, log)

		var angle *int
		if cmd.Flags().Changed("angle") {
			angle = &actuateAngle
		}
		command, err := svc.Manual(cmd.Context(), id, angle)
		if err != nil {
			return err
		}
		fmt.Printf("Sent to servo %d: angle %d\n", command.ActuatorID, *command.Angle)
		return nil
	},
}

func init() {
	actuateCmd.Flags().IntVar(&actuateAngle, "angle", 180, "target angle (default: DEFAULT_ANGLE)")
	rootCmd.AddCommand(actuateCmd)
}
