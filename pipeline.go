package batchtmpconverter

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

type outcome int

const (
	processed outcome = iota
	skipped
	failed
)

func (c *Converter) isTemplate(file string) bool {
	ext := filepath.Ext(file)
	for _, e := range c.opts.Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

func (c *Converter) findFiles(ctx context.Context, inputs []string) (<-chan string, <-chan error, error) {
	out := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)
		for _, input := range inputs {
			if _, err := os.Stat(input); err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					c.logger.Printf("Input \"%s\" does not exist\n", input)
					continue
				}
				errc <- err
				return
			}

			if err := filepath.Walk(input, func(file string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}

				if info.Mode().IsDir() {
					// Only the top level of a directory is searched
					if file != input {
						return filepath.SkipDir
					}
					return nil
				}

				// Ignore hidden files found by searching a directory
				if file != input && info.Name()[0] == '.' {
					return nil
				}

				if !info.Mode().IsRegular() || !c.isTemplate(file) {
					return nil
				}

				select {
				case out <- file:
				case <-ctx.Done():
					return errors.New("walk cancelled")
				}

				return nil
			}); err != nil {
				errc <- err
				return
			}
		}
	}()
	return out, errc, nil
}

func (c *Converter) fileWorker(ctx context.Context, in <-chan string, fn func(context.Context, string) (outcome, error), s *Summary) (<-chan error, error) {
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		for file := range in {
			result, err := fn(ctx, file)
			if err != nil {
				c.logger.Printf("Unable to process \"%s\": %v\n", file, err)
				result = failed
			}

			switch result {
			case processed:
				s.Processed++
			case skipped:
				s.Skipped++
			default:
				s.Failed++
			}
		}
	}()
	return errc, nil
}

// waitForPipeline waits for every stage to finish and returns the first error
func waitForPipeline(errs ...<-chan error) error {
	var first error
	for err := range mergeErrors(errs...) {
		if err != nil && first == nil {
			first = err
		}
	}
	return first
}

func mergeErrors(cs ...<-chan error) <-chan error {
	var wg sync.WaitGroup
	out := make(chan error, len(cs))
	wg.Add(len(cs))
	for _, c := range cs {
		go func(c <-chan error) {
			for n := range c {
				out <- n
			}
			wg.Done()
		}(c)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// run feeds every template found in the inputs through fn one at a time,
// then saves the modification log
func (c *Converter) run(ctx context.Context, fn func(context.Context, string) (outcome, error)) (Summary, error) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	var s Summary
	var errcList []<-chan error

	files, errc, err := c.findFiles(ctx, c.opts.Files)
	if err != nil {
		return s, err
	}
	errcList = append(errcList, errc)

	errc, err = c.fileWorker(ctx, files, fn, &s)
	if err != nil {
		return s, err
	}
	errcList = append(errcList, errc)

	if err := waitForPipeline(errcList...); err != nil {
		return s, err
	}

	if c.log != nil {
		if err := c.log.Save(); err != nil {
			return s, err
		}
	}

	return s, nil
}
