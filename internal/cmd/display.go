package cmd

import (
	"fmt"
	"time"

	"github.com/ntodo/ntodo/internal/apperrors"
	"github.com/ntodo/ntodo/internal/todo"
)

// displayTasks prints the task list.
//
//nolint:forbidigo // CLI user output function
func displayTasks(items []todo.Item) {
	if len(items) == 0 {
		fmt.Println("No tasks.")
		return
	}

	for i := range items {
		printTask(&items[i])
	}
	fmt.Printf("\n%d task(s)\n", len(items))
}

// printTask prints one task line.
//
//nolint:forbidigo // CLI user output function
func printTask(item *todo.Item) {
	mark := " "
	if item.Status == todo.StatusCompleted {
		mark = "x"
	}

	line := fmt.Sprintf("[%s] %s", mark, item.Summary)
	if item.Due != nil {
		if item.DueDateOnly {
			line += fmt.Sprintf(" (due %s)", item.Due.Format("2006-01-02"))
		} else {
			line += fmt.Sprintf(" (due %s)", item.Due.Format(time.RFC3339))
		}
	}

	fmt.Println(line)
	if item.Description != nil {
		fmt.Printf("      %s\n", *item.Description)
	}
	fmt.Printf("      uid: %s\n", item.UID)
}

// displayValidation prints the credential check result, distinguishing
// credential errors from connectivity errors from everything else.
//
//nolint:forbidigo // CLI user output function
func displayValidation(databaseID string, err error) {
	fmt.Printf("Checking access to database %s...\n", databaseID)

	switch {
	case err == nil:
		fmt.Println("Credentials OK.")
	case apperrors.IsAuthentication(err):
		fmt.Println("Authentication failed: the token is invalid or the database is not shared with the integration.")
	case apperrors.IsCommunication(err):
		fmt.Println("Could not reach the Notion API. Check your network connection.")
	default:
		fmt.Printf("Unexpected failure: %v\n", err)
	}
}
