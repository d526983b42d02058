package command

import "strings"

// ParseResult holds the parsed command name and arguments from a text line.
type ParseResult struct {
	// Command is the first word of the input, lowercased, without a leading slash.
	Command string
	// Args are the remaining words after the command. Home names keep their case.
	Args []string
}

// Parse splits a text line into a command and arguments.
//
// Postcondition: Returns a ParseResult. If line is blank, Command is empty.
func Parse(line string) ParseResult {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ParseResult{}
	}

	res := ParseResult{Command: strings.ToLower(strings.TrimPrefix(fields[0], "/"))}
	if len(fields) > 1 {
		res.Args = fields[1:]
	}
	return res
}
