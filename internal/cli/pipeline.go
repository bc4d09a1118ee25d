package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// NewPipelineCmd создаёт группу команд для пайплайнов.
func NewPipelineCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Manage pipelines",
	}

	cmd.AddCommand(newPipelineLoadCmd(clientFn, outputFn))
	return cmd
}

func newPipelineLoadCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "load <file|->",
		Short: "Create a pipeline from a YAML or JSON definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readDefinition(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			p, err := clientFn().LoadPipeline(data)
			if err != nil {
				return err
			}

			out := outputFn()
			out.Success(fmt.Sprintf("Pipeline created: %s", p.IRI))

			rows := make([][]string, len(p.Steps))
			for i, s := range p.Steps {
				rows[i] = []string{strconv.FormatInt(s.Order, 10), s.Code, s.Status}
			}
			out.Print([]string{"ORDER", "CODE", "STATUS"}, rows, p)
			return nil
		},
	}
}

// readDefinition читает определение из файла или stdin ("-").
func readDefinition(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
