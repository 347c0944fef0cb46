package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/muurk/intmatrix/internal/config"
	"github.com/muurk/intmatrix/internal/protocol"
	"github.com/muurk/intmatrix/internal/ui"
)

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configSetModelCmd)
	configCmd.AddCommand(configSetNicknameCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and edit the configuration file",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := yaml.Marshal(registry)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		fmt.Print(string(data))
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file location",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.GetConfigPath()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

var configSetModelCmd = &cobra.Command{
	Use:   "set-model HOST MODEL",
	Short: "Remember the model of a device",
	Example: `  intmatrix config set-model 192.168.1.50 8
  intmatrix config set-model matrix.local INT-66HDX`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := protocol.ParseModel(args[1])
		if err != nil {
			return err
		}
		registry.SetDeviceModel(args[0], m)
		if err := registry.Save(); err != nil {
			return err
		}
		ui.NewPrinter(nil).PrintSuccess("Model saved", map[string]string{
			"Device": args[0],
			"Model":  m.String(),
		})
		return nil
	},
}

var configSetNicknameCmd = &cobra.Command{
	Use:   "set-nickname HOST NAME",
	Short: "Give a device a friendly name",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry.SetDeviceNickname(args[0], args[1])
		if err := registry.Save(); err != nil {
			return err
		}
		ui.NewPrinter(nil).PrintSuccess("Nickname saved", map[string]string{
			"Device":   args[0],
			"Nickname": args[1],
		})
		return nil
	},
}
