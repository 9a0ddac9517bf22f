package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Wizard provides an interactive configuration wizard
type Wizard struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewWizard creates a wizard reading answers from in and writing prompts to
// out.
func NewWizard(in io.Reader, out io.Writer) *Wizard {
	return &Wizard{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Run runs the interactive configuration wizard starting from base. Empty
// answers keep the current value.
func (w *Wizard) Run(base *Config) (*Config, error) {
	cfg := *base
	validator := NewValidator()

	fmt.Fprintln(w.out, "=== apibridge Configuration Wizard ===")
	fmt.Fprintln(w.out)

	// Transport
	for {
		answer, err := w.ask("Transport (sequential/concurrent)", cfg.Transport)
		if err != nil {
			return nil, err
		}
		if err := validator.ValidateTransport(answer); err != nil {
			fmt.Fprintf(w.out, "Error: %v\n", err)
			continue
		}
		cfg.Transport = NormalizeTransport(answer)
		break
	}

	if cfg.Transport == TransportConcurrent {
		host, err := w.ask("Listen host", cfg.Host)
		if err != nil {
			return nil, err
		}
		cfg.Host = host

		for {
			answer, err := w.ask("Listen port", strconv.Itoa(cfg.Port))
			if err != nil {
				return nil, err
			}
			port, convErr := strconv.Atoi(answer)
			if convErr != nil {
				fmt.Fprintf(w.out, "Error: port must be a number\n")
				continue
			}
			if err := validator.ValidatePort(port); err != nil {
				fmt.Fprintf(w.out, "Error: %v\n", err)
				continue
			}
			cfg.Port = port
			break
		}

		token, err := w.ask("Inbound bearer token (empty disables the check)", cfg.InboundToken)
		if err != nil {
			return nil, err
		}
		cfg.InboundToken = token
	}

	fmt.Fprintln(w.out)

	// Store
	for {
		answer, err := w.ask("Store file", cfg.StorePath)
		if err != nil {
			return nil, err
		}
		if err := validator.ValidateStorePath(answer); err != nil {
			fmt.Fprintf(w.out, "Error: %v\n", err)
			continue
		}
		cfg.StorePath = answer
		break
	}

	admin, err := w.ask("Allow clients to add and change APIs? (y/n)", yesNo(!cfg.AdminDisabled))
	if err != nil {
		return nil, err
	}
	cfg.AdminDisabled = !strings.HasPrefix(strings.ToLower(admin), "y")

	for {
		answer, err := w.ask("Upstream timeout in seconds", strconv.Itoa(cfg.Upstream.TimeoutSeconds))
		if err != nil {
			return nil, err
		}
		seconds, convErr := strconv.Atoi(answer)
		if convErr != nil {
			fmt.Fprintf(w.out, "Error: timeout must be a number\n")
			continue
		}
		if err := validator.ValidateTimeout(seconds); err != nil {
			fmt.Fprintf(w.out, "Error: %v\n", err)
			continue
		}
		cfg.Upstream.TimeoutSeconds = seconds
		break
	}

	fmt.Fprintln(w.out)

	// Log Level
	level, err := w.ask("Log level (debug/info/warn/error)", cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	if err := validator.ValidateLogLevel(level); err != nil {
		fmt.Fprintf(w.out, "Warning: %v, keeping %s\n", err, cfg.Logging.Level)
	} else {
		cfg.Logging.Level = level
	}

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, "Configuration complete!")

	return &cfg, nil
}

func yesNo(b bool) string {
	if b {
		return "y"
	}
	return "n"
}

// ask prints a prompt with its current value and returns the answer, or the
// current value when the answer is empty.
func (w *Wizard) ask(prompt, current string) (string, error) {
	fmt.Fprintf(w.out, "%s [%s]: ", prompt, current)
	line, err := w.readLine()
	if err != nil {
		return "", err
	}
	if line == "" {
		return current, nil
	}
	return line, nil
}

func (w *Wizard) readLine() (string, error) {
	line, err := w.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimSpace(line), nil
		}
		return "", fmt.Errorf("failed to read answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}
