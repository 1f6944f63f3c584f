package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tcassar-diss/syscount/internal/tracer"
)

var ErrProgramNotFound = errors.New("program not found")

type answers struct {
	program string
	output  string
}

// prompt asks for the program to trace and where to save its summary.
//
// An empty output answer keeps the configured destination.
func prompt(in io.Reader, out io.Writer) (*answers, error) {
	reader := bufio.NewReader(in)

	program, err := ask(reader, out, "Enter the program or script to trace (e.g., './example_program'): ")
	if err != nil {
		return nil, err
	}

	// bare names are looked up in $PATH, as they would be on the command line
	if _, err := tracer.ResolveTarget(program); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrProgramNotFound, program)
	}

	output, err := ask(reader, out, "Enter the name of the output file (e.g., 'output.txt'): ")
	if err != nil {
		return nil, err
	}

	return &answers{program: program, output: output}, nil
}

func ask(reader *bufio.Reader, out io.Writer, question string) (string, error) {
	fmt.Fprint(out, question)

	line, err := reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read answer: %w", err)
	}

	return strings.TrimSpace(line), nil
}
