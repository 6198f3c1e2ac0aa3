package batchtmpconverter

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/google/shlex"
)

const preprocessExtension = ".preproc"

// Command is an external program run on an image before it is converted. The
// arguments are split the way a shell would, so quoted arguments may contain
// spaces. Any $FILENAME in the arguments is replaced with the path of the
// image after splitting.
type Command struct {
	Executable string
	Arguments  string
}

func (c Command) String() string {
	return strings.TrimSpace(c.Executable + " " + c.Arguments)
}

func (c Command) cmd(ctx context.Context, file string) (*exec.Cmd, error) {
	args, err := shlex.Split(c.Arguments)
	if err != nil {
		return nil, fmt.Errorf("preprocess command \"%s\": %w", c, err)
	}
	for i, arg := range args {
		args[i] = strings.ReplaceAll(arg, preprocessToken, file)
	}
	return exec.CommandContext(ctx, c.Executable, args...), nil
}

// ParseCommands parses a comma-separated list of commands, each of which is
// an executable optionally followed by a semicolon and its arguments
func ParseCommands(s string) []Command {
	var commands []Command
	for _, command := range strings.Split(s, ",") {
		parts := strings.FieldsFunc(command, func(r rune) bool {
			return r == ';'
		})
		if len(parts) < 1 {
			continue
		}

		c := Command{Executable: parts[0]}
		if len(parts) > 1 {
			c.Arguments = parts[1]
		}
		commands = append(commands, c)
	}
	return commands
}

func copyFile(dst, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}

// preprocess runs the preprocess commands on a copy of image and returns the
// path of the copy, or image itself if there are no commands. The caller
// removes the copy.
func (c *Converter) preprocess(ctx context.Context, image string) (string, error) {
	if len(c.opts.PreprocessCommands) == 0 {
		return image, nil
	}

	file := image + preprocessExtension
	if err := copyFile(file, image); err != nil {
		return "", err
	}

	for _, command := range c.opts.PreprocessCommands {
		cmd, err := command.cmd(ctx, file)
		if err != nil {
			os.Remove(file)
			return "", err
		}
		cmd.Stdout = c.logger.Writer()
		cmd.Stderr = c.logger.Writer()

		if err := cmd.Run(); err != nil {
			os.Remove(file)
			return "", fmt.Errorf("preprocess command \"%s\": %w", command, err)
		}
	}

	return file, nil
}
