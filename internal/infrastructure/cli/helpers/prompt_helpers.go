package helpers

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrInputClosed is returned by the prompt helpers once input runs out.
var ErrInputClosed = errors.New("input closed before setup finished")

// PromptForYesNo prompts the user for a yes/no question.
// Returns the default value when the line is empty or unreadable.
func PromptForYesNo(out io.Writer, reader *bufio.Reader, promptText string, defaultValue bool) bool {
	label := "y/N"
	if defaultValue {
		label = "Y/n"
	}
	fmt.Fprintf(out, "%s [%s]: ", promptText, label)

	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(strings.ToLower(line))
	if line == "" {
		return defaultValue
	}
	return IsAffirmative(line)
}

// PromptForConfirmation asks the user to confirm an action, defaulting to no.
func PromptForConfirmation(out io.Writer, reader *bufio.Reader, question string) bool {
	return PromptForYesNo(out, reader, question, false)
}

// IsAffirmative checks if a response is affirmative (yes)
func IsAffirmative(response string) bool {
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes"
}

// PrintWarnings outputs a list of warning messages to the writer
func PrintWarnings(out io.Writer, warnings []string) {
	for _, warning := range warnings {
		warning = strings.TrimSpace(warning)
		if warning == "" {
			continue
		}
		fmt.Fprintf(out, "Warning: %s\n", warning)
	}
}

func readAnswer(reader *bufio.Reader) (string, error) {
	line, err := reader.ReadString('\n')
	if errors.Is(err, io.EOF) {
		if line == "" {
			return "", ErrInputClosed
		}
		return strings.TrimSpace(line), nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// PromptString asks for free text. An empty answer selects defaultValue.
func PromptString(out io.Writer, reader *bufio.Reader, promptText, defaultValue string) (string, error) {
	if defaultValue != "" {
		fmt.Fprintf(out, "%s (default: %s): ", promptText, defaultValue)
	} else {
		fmt.Fprintf(out, "%s: ", promptText)
	}
	answer, err := readAnswer(reader)
	if err != nil {
		return "", err
	}
	if answer == "" {
		return defaultValue, nil
	}
	return answer, nil
}

// PromptPositiveInt asks until it reads a number above zero. An empty answer
// selects defaultValue.
func PromptPositiveInt(out io.Writer, reader *bufio.Reader, promptText string, defaultValue int) (int, error) {
	for {
		fmt.Fprintf(out, "%s (default: %d): ", promptText, defaultValue)
		answer, err := readAnswer(reader)
		if err != nil {
			return 0, err
		}
		if answer == "" {
			return defaultValue, nil
		}
		value, err := strconv.Atoi(answer)
		switch {
		case err != nil:
			fmt.Fprintln(out, "Please enter a valid number.")
		case value <= 0:
			fmt.Fprintln(out, "Value must be greater than zero.")
		default:
			return value, nil
		}
	}
}

// PromptChoice asks for a 1-based entry of a list of count items and returns
// its 0-based index. defaultIndex below zero makes an answer mandatory.
func PromptChoice(out io.Writer, reader *bufio.Reader, promptText string, count, defaultIndex int) (int, error) {
	for {
		if defaultIndex >= 0 {
			fmt.Fprintf(out, "%s [1-%d] (default: %d): ", promptText, count, defaultIndex+1)
		} else {
			fmt.Fprintf(out, "%s [1-%d]: ", promptText, count)
		}
		answer, err := readAnswer(reader)
		if err != nil {
			return 0, err
		}
		if answer == "" {
			if defaultIndex >= 0 {
				return defaultIndex, nil
			}
			fmt.Fprintln(out, "Please select a number.")
			continue
		}
		n, err := strconv.Atoi(answer)
		if err != nil || n < 1 || n > count {
			fmt.Fprintf(out, "Please enter a number between 1 and %d.\n", count)
			continue
		}
		return n - 1, nil
	}
}

// MaskAPIKey keeps the first eight characters of key.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	visible := len(key)
	if visible > 8 {
		visible = 8
	}
	return key[:visible] + "***"
}
