package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/conorfennell/tinithink/internal/domain"
)

const (
	pathPrefix     = "P:"
	questionPrefix = "Q:"
	answerPrefix   = "A:"
	separator      = "---"

	// PathSeparator splits the names in a P: line.
	PathSeparator = "/"
)

type state int

const (
	seeking state = iota
	readingQuestion
	readingAnswer
)

// LineError is a problem with one line of a deck file. Parsing continues
// past it.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// ParseFile reads a file from the given path and extracts all cards.
func ParseFile(path string) ([]domain.Card, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads a deck and extracts its cards. Each card carries the path set
// by the closest P: line above it. Cards are returned even when some lines
// were rejected; those problems come back joined in the error.
func Parse(r io.Reader) ([]domain.Card, error) {
	scanner := bufio.NewScanner(r)
	var (
		cards        []domain.Card
		lineErrs     []error
		currentCard  domain.Card
		currentBlock []string
		currentPath  domain.Path
		currentState = seeking
		lineNo       int
	)

	flushBlock := func() {
		if len(currentBlock) == 0 {
			return
		}
		content := strings.TrimSpace(strings.Join(currentBlock, "\n"))
		switch currentState {
		case readingQuestion:
			currentCard.Question = content
		case readingAnswer:
			currentCard.Answer = content
		}
		currentBlock = nil
	}

	finishCard := func() {
		flushBlock()
		if currentCard.Question != "" && currentCard.Answer != "" {
			currentCard.Path = currentPath.Clone()
			cards = append(cards, currentCard)
		}
		currentCard = domain.Card{}
		currentState = seeking
	}

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		switch {
		case strings.TrimSpace(line) == separator:
			finishCard()

		case strings.HasPrefix(line, pathPrefix):
			finishCard()
			path, err := domain.ParsePath(trimPrefix(line, pathPrefix), PathSeparator)
			if err != nil {
				lineErrs = append(lineErrs, &LineError{Line: lineNo, Err: err})
				path = nil
			}
			currentPath = path

		case strings.HasPrefix(line, questionPrefix):
			if currentState != seeking { // A new question always starts a new card
				finishCard()
			}
			currentState = readingQuestion
			currentBlock = append(currentBlock, trimPrefix(line, questionPrefix))

		case strings.HasPrefix(line, answerPrefix):
			flushBlock()
			if currentState == seeking {
				lineErrs = append(lineErrs, &LineError{Line: lineNo, Err: errors.New("answer without a question")})
			}
			currentState = readingAnswer
			currentBlock = append(currentBlock, trimPrefix(line, answerPrefix))

		case currentState != seeking:
			currentBlock = append(currentBlock, line)
		}
	}

	finishCard() // Finish the very last card in the file

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return cards, errors.Join(lineErrs...)
}

func trimPrefix(line, prefix string) string {
	content := line[len(prefix):]
	return strings.TrimPrefix(content, " ")
}
