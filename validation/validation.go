// Package validation holds the pure input validators. Each function takes a
// raw value, returns the normalized (trimmed) value or an error describing
// exactly which rule failed. Nothing here touches the store.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	nameRe      = regexp.MustCompile(`^[\p{L}'.\-]+$`)
	teamNameRe  = regexp.MustCompile(`^[\p{L}0-9'.\-\s]+$`)
	usernameRe  = regexp.MustCompile(`^[A-Za-z0-9]+$`)
	letterRe    = regexp.MustCompile(`[A-Za-z]`)
	lowerRe     = regexp.MustCompile(`[a-z]`)
	upperRe     = regexp.MustCompile(`[A-Z]`)
	digitRe     = regexp.MustCompile(`[0-9]`)
	specialRe   = regexp.MustCompile(`[^A-Za-z0-9]`)
	emailRe     = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRe     = regexp.MustCompile(`^\d{3}-\d{3}-\d{4}$`)
	dateShapeRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// Text rejects missing or blank values and returns the trimmed string. The
// field label is used in the error message.
func Text(value, field string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("%s must be a non-empty string", field)
	}
	return trimmed, nil
}

// Description validates a team description: 10-500 characters after
// trimming.
func Description(value string) (string, error) {
	trimmed, err := Text(value, "description")
	if err != nil {
		return "", err
	}
	if n := len([]rune(trimmed)); n < 10 || n > 500 {
		return "", fmt.Errorf("description must be between 10 and 500 characters, got %d", n)
	}
	return trimmed, nil
}

// Name validates a personal name: 5-25 characters, unicode letters plus
// hyphen, apostrophe and period.
func Name(value, field string) (string, error) {
	trimmed, err := Text(value, field)
	if err != nil {
		return "", err
	}
	if n := len([]rune(trimmed)); n < 5 || n > 25 {
		return "", fmt.Errorf("%s must be between 5 and 25 characters long", field)
	}
	if !nameRe.MatchString(trimmed) {
		return "", fmt.Errorf("%s can only contain letters, hyphens, apostrophes, and periods", field)
	}
	return trimmed, nil
}

// TeamName validates a team name: 3-25 characters, letters, digits, spaces
// plus hyphen, apostrophe and period.
func TeamName(value string) (string, error) {
	trimmed, err := Text(value, "team name")
	if err != nil {
		return "", err
	}
	if n := len([]rune(trimmed)); n < 3 || n > 25 {
		return "", fmt.Errorf("team name must be between 3 and 25 characters long")
	}
	if !teamNameRe.MatchString(trimmed) {
		return "", fmt.Errorf("team name can only contain letters, numbers, spaces, hyphens, apostrophes, and periods")
	}
	return trimmed, nil
}

// Username validates a username: at least 5 alphanumeric characters with at
// least one letter.
func Username(value string) (string, error) {
	trimmed, err := Text(value, "username")
	if err != nil {
		return "", err
	}
	if len(trimmed) < 5 {
		return "", fmt.Errorf("username must be at least 5 characters long")
	}
	if !usernameRe.MatchString(trimmed) || !letterRe.MatchString(trimmed) {
		return "", fmt.Errorf("username must be alphanumeric and contain at least one letter")
	}
	return trimmed, nil
}

// Password validates a password: at least 8 characters, no whitespace, and at
// least one lowercase letter, one uppercase letter, one digit, and one
// special character.
func Password(value string) (string, error) {
	trimmed, err := Text(value, "password")
	if err != nil {
		return "", err
	}
	if len(trimmed) < 8 {
		return "", fmt.Errorf("password must be at least 8 characters long")
	}
	if strings.ContainsAny(trimmed, " \t\n\r") {
		return "", fmt.Errorf("password cannot contain spaces")
	}
	switch {
	case !lowerRe.MatchString(trimmed):
		return "", fmt.Errorf("password must contain at least one lowercase letter")
	case !upperRe.MatchString(trimmed):
		return "", fmt.Errorf("password must contain at least one uppercase letter")
	case !digitRe.MatchString(trimmed):
		return "", fmt.Errorf("password must contain at least one number")
	case !specialRe.MatchString(trimmed):
		return "", fmt.Errorf("password must contain at least one special character")
	}
	return trimmed, nil
}

// MatchingPasswords confirms the password and its confirmation are identical
// after trimming.
func MatchingPasswords(password, confirm string) error {
	if strings.TrimSpace(password) != strings.TrimSpace(confirm) {
		return fmt.Errorf("passwords do not match")
	}
	return nil
}

// Email validates an address against a deliberately light regex, capped at
// 254 characters.
func Email(value string) (string, error) {
	trimmed, err := Text(value, "email")
	if err != nil {
		return "", err
	}
	if !emailRe.MatchString(trimmed) {
		return "", fmt.Errorf("%s is not a valid email address", trimmed)
	}
	if len(trimmed) > 254 {
		return "", fmt.Errorf("email cannot exceed 254 characters")
	}
	return trimmed, nil
}

// PhoneNumber validates the exact ###-###-#### format.
func PhoneNumber(value string) (string, error) {
	trimmed, err := Text(value, "phone number")
	if err != nil {
		return "", err
	}
	if !phoneRe.MatchString(trimmed) {
		return "", fmt.Errorf("%s needs to follow the format ###-###-####", trimmed)
	}
	return trimmed, nil
}

// Date parses a YYYY-MM-DD value.
func Date(value string) (time.Time, error) {
	trimmed, err := Text(value, "date")
	if err != nil {
		return time.Time{}, err
	}
	if !dateShapeRe.MatchString(trimmed) {
		return time.Time{}, fmt.Errorf("date must follow the format YYYY-MM-DD")
	}
	parsed, err := time.Parse("2006-01-02", trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s is not a valid date", trimmed)
	}
	return parsed, nil
}

// Birthday parses a date and requires the person to be at least 18 years old
// today.
func Birthday(value string) (time.Time, error) {
	return birthdayAt(value, time.Now())
}

func birthdayAt(value string, now time.Time) (time.Time, error) {
	birthday, err := Date(value)
	if err != nil {
		return time.Time{}, err
	}
	if ageAt(birthday, now) < 18 {
		return time.Time{}, fmt.Errorf("user must be at least 18 years old")
	}
	return birthday, nil
}

// ageAt computes whole years between birthday and now, accounting for
// month/day rollover.
func ageAt(birthday, now time.Time) int {
	age := now.Year() - birthday.Year()
	if now.Month() < birthday.Month() ||
		(now.Month() == birthday.Month() && now.Day() < birthday.Day()) {
		age--
	}
	return age
}

// Score validates a game score. A nil score is allowed: games may be recorded
// before they are played.
func Score(score *int) error {
	if score == nil {
		return nil
	}
	if *score < 0 {
		return fmt.Errorf("score cannot be negative")
	}
	return nil
}
