package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/docchat/internal/config"
)

func init() {
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		scanner := bufio.NewScanner(os.Stdin)

		fmt.Println("docchat setup")
		fmt.Println("Press Enter to accept the default value shown in brackets.")
		fmt.Println()

		cfg.Backend.BaseURL = prompt(scanner, "Backend URL", cfg.Backend.BaseURL)
		cfg.Backend.APIKey = prompt(scanner, "Backend API key (optional)", cfg.Backend.APIKey)

		timeoutStr := prompt(scanner, "Backend timeout (seconds)", strconv.Itoa(cfg.Backend.TimeoutSeconds))
		if n, err := strconv.Atoi(timeoutStr); err == nil && n > 0 {
			cfg.Backend.TimeoutSeconds = n
		}

		driver := strings.ToLower(prompt(scanner, "Storage driver (file, sqlite)", cfg.Storage.Driver))
		if driver != "file" && driver != "sqlite" {
			return fmt.Errorf("unsupported storage driver: %s", driver)
		}
		cfg.Storage.Driver = driver

		cfg.Telegram.Token = prompt(scanner, "Telegram bot token (optional)", cfg.Telegram.Token)
		if cfg.Telegram.Token != "" {
			userStr := prompt(scanner, "Telegram user ID allowed to chat", strconv.FormatInt(cfg.Telegram.AllowedUserID, 10))
			if n, err := strconv.ParseInt(userStr, 10, 64); err == nil {
				cfg.Telegram.AllowedUserID = n
			}
		}

		if err := config.Save(cfgPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		fmt.Println()
		fmt.Println("Configuration saved to", cfgPath)
		return nil
	},
}

// prompt displays a labeled prompt with a default value and reads user input.
// If the user enters nothing, the default is returned.
func prompt(scanner *bufio.Scanner, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", label, defaultVal)
	} else {
		fmt.Printf("%s: ", label)
	}
	if scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input != "" {
			return input
		}
	}
	return defaultVal
}
