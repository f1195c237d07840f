package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"

	"github.com/knights-analytics/vlcollate"
	"github.com/knights-analytics/vlcollate/collators"
	"github.com/knights-analytics/vlcollate/datasets"
	"github.com/knights-analytics/vlcollate/options"
	"github.com/knights-analytics/vlcollate/util/fileutil"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var tokenizerPath string
var inputPath string
var outputPath string
var configPath string
var pixelField string
var batchSize int
var maxLength int
var labelIgnoreIndex int
var padTokenID int64
var truncation bool
var downloadDir string
var downloadBranch string

var collateCommand = &cli.Command{
	Name:  "collate",
	Usage: "Collate multi-modal examples into batches",
	Description: `Collate expects a path to a file with input in .jsonl format. Each json line is one example, e.g.
				{"text": "a photo of a cat", "pixel_values": [[[0.1, 0.2], [0.3, 0.4]]], "boxes": [0, 0, 10, 10]}
				The text field is tokenized into input_ids and attention_mask; pre-tokenized input_ids are used as is.
				For every batch one json line is written with the shape and dtype of each collated field.
				`,
	ArgsUsage: `
				--input: path to a .jsonl file or a folder with .jsonl files to process. If omitted, the input will be read from stdin.
				--output: path to a folder where to write the output. If omitted, the output will be sent to stdout.
				--tokenizer: path to a tokenizer.json file or to a folder containing it.
				--padTokenId: pad token id for pre-tokenized input when no tokenizer is given.
				--config: path to a yaml file with collator options. Flags override the file.
				`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:        "input",
			Usage:       "Path to the input data",
			Aliases:     []string{"i"},
			Destination: &inputPath,
		},
		&cli.StringFlag{
			Name:        "output",
			Usage:       "Path to output",
			Aliases:     []string{"o"},
			Destination: &outputPath,
		},
		&cli.StringFlag{
			Name:        "tokenizer",
			Usage:       "Path to the tokenizer",
			Aliases:     []string{"t"},
			Destination: &tokenizerPath,
		},
		&cli.Int64Flag{
			Name:        "padTokenId",
			Usage:       "Pad token id used without a tokenizer",
			Destination: &padTokenID,
		},
		&cli.IntFlag{
			Name:        "batchSize",
			Usage:       "Number of examples in a batch",
			Aliases:     []string{"b"},
			Destination: &batchSize,
			Value:       8,
		},
		&cli.StringFlag{
			Name:        "config",
			Usage:       "Path to a yaml collator config",
			Aliases:     []string{"c"},
			Destination: &configPath,
		},
		&cli.IntFlag{
			Name:        "maxLength",
			Usage:       "Pad or truncate text to this length",
			Destination: &maxLength,
		},
		&cli.BoolFlag{
			Name:        "truncation",
			Usage:       "Truncate text longer than maxLength",
			Destination: &truncation,
		},
		&cli.IntFlag{
			Name:        "labelIgnoreIndex",
			Usage:       "Label value for padded and masked positions",
			Destination: &labelIgnoreIndex,
		},
		&cli.StringFlag{
			Name:        "pixelField",
			Usage:       "Name of the image field",
			Destination: &pixelField,
		},
	},
	Action: runCollate,
}

func runCollate(ctx *cli.Context) (err error) {
	opts, err := collateOptions(ctx)
	if err != nil {
		return err
	}
	parsedOptions, err := options.Apply(opts...)
	if err != nil {
		return err
	}

	var c collator
	var encoder datasets.Encoder
	switch {
	case tokenizerPath != "":
		withTokenizer, loadErr := vlcollate.NewCollator(tokenizerPath, opts...)
		if loadErr != nil {
			return loadErr
		}
		defer func() {
			err = errors.Join(err, withTokenizer.Destroy())
		}()
		c = withTokenizer
		encoder = withTokenizer.Tokenizer()
	case ctx.IsSet("padTokenId"):
		fixed, fixedErr := collators.NewVisionLanguageCollator(collators.FixedPadding{ID: padTokenID, Left: parsedOptions.PaddingLeft}, opts...)
		if fixedErr != nil {
			return fixedErr
		}
		c = fixed
	default:
		return errors.New("either --tokenizer or --padTokenId is required")
	}

	inputChannel := make(chan []collators.Example, 100)
	processedChannel := make(chan []byte, 100)
	errorsChannel := make(chan error, 100)
	nWriteWorkers := 1
	nProcessWorkers := 1
	var processedWg, writeWg sync.WaitGroup

	var writer io.WriteCloser = os.Stdout
	if outputPath != "" {
		if err := fileutil.CreateDir(ctx.Context, outputPath); err != nil {
			return err
		}
		writer, err = fileutil.NewFileWriter(ctx.Context, fileutil.PathJoinSafe(outputPath, "result-0.jsonl"))
		if err != nil {
			return err
		}
	}
	for range nProcessWorkers {
		processedWg.Add(1)
		go processBatches(&processedWg, inputChannel, processedChannel, errorsChannel, c)
	}
	var runErrs []error
	for range nWriteWorkers {
		writeWg.Add(1)
		go writeOutputs(&writeWg, processedChannel, errorsChannel, writer, &runErrs)
	}

	readErr := readAllInputs(ctx.Context, inputChannel, encoder, parsedOptions.PixelField)

	close(inputChannel)
	processedWg.Wait()
	close(processedChannel)
	close(errorsChannel)
	writeWg.Wait()
	if outputPath != "" {
		runErrs = append(runErrs, writer.Close())
	}
	return errors.Join(append([]error{readErr}, runErrs...)...)
}

var downloadCommand = &cli.Command{
	Name:      "download",
	Usage:     "Download the tokenizer of a huggingface repository",
	ArgsUsage: "<owner/name>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:        "destination",
			Usage:       "Folder where to store downloaded tokenizers. Falls back to $HOME/vlcollate/tokenizers if not specified",
			Aliases:     []string{"d"},
			Destination: &downloadDir,
		},
		&cli.StringFlag{
			Name:        "branch",
			Usage:       "Repository revision",
			Destination: &downloadBranch,
			Value:       "main",
		},
	},
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 1 {
			return errors.New("download expects exactly one repository name")
		}
		if downloadDir == "" {
			userDir, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			downloadDir = fileutil.PathJoinSafe(userDir, "vlcollate", "tokenizers")
		}
		downloadOptions := vlcollate.NewDownloadOptions()
		downloadOptions.Branch = downloadBranch
		downloadOptions.AuthToken = os.Getenv("HF_TOKEN")
		downloadOptions.Verbose = true
		tokenizerDir, err := vlcollate.DownloadTokenizer(ctx.Context, ctx.Args().First(), downloadDir, downloadOptions)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(ctx.App.Writer, tokenizerDir)
		return err
	},
}

type collator interface {
	Collate(batch []collators.Example) (collators.Batch, error)
}

// collateOptions merges the config file with the flags set on the command line.
func collateOptions(ctx *cli.Context) ([]options.WithOption, error) {
	var opts []options.WithOption
	if configPath != "" {
		fileOpts, err := options.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, fileOpts...)
	}
	if ctx.IsSet("maxLength") {
		opts = append(opts, options.WithMaxLength(maxLength))
	}
	if ctx.IsSet("truncation") {
		opts = append(opts, options.WithTruncation(truncation))
	}
	if ctx.IsSet("labelIgnoreIndex") {
		opts = append(opts, options.WithLabelIgnoreIndex(labelIgnoreIndex))
	}
	if ctx.IsSet("pixelField") {
		opts = append(opts, options.WithPixelField(pixelField))
	}
	return opts, nil
}

func readAllInputs(ctx context.Context, inputChannel chan []collators.Example, encoder datasets.Encoder, pixelField string) error {
	exists := false
	if inputPath != "" {
		var err error
		if exists, err = fileutil.FileExists(inputPath); err != nil {
			return err
		}
	}

	if exists {
		fileWalker := func(ctx context.Context, baseURL, parent string, info os.FileInfo, reader io.Reader) (toContinue bool, err error) {
			if filepath.Ext(info.Name()) == ".jsonl" {
				if err := readInputs(reader, inputChannel, encoder, pixelField); err != nil {
					return false, fmt.Errorf("%s: %w", info.Name(), err)
				}
			}
			return true, nil
		}
		return fileutil.Walk(ctx, inputPath, fileWalker)
	}
	if inputPath != "" {
		return fmt.Errorf("file %s does not exist", inputPath)
	}
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		// there is something to process on stdin
		return readInputs(os.Stdin, inputChannel, encoder, pixelField)
	}
	return nil
}

func readInputs(inputSource io.Reader, inputChannel chan []collators.Example, encoder datasets.Encoder, pixelField string) error {
	d, err := datasets.NewReaderDataset(inputSource, batchSize, encoder)
	if err != nil {
		return err
	}
	d.SetPixelField(pixelField)
	for {
		batch, err := d.YieldRaw()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		inputChannel <- batch
	}
}

type fieldSummary struct {
	DType string `json:"dtype"`
	Shape []int  `json:"shape"`
}

type batchSummary struct {
	Fields map[string]fieldSummary `json:"fields"`
	Size   int                     `json:"size"`
}

func summarize(batch []collators.Example, collated collators.Batch) batchSummary {
	summary := batchSummary{Size: len(batch), Fields: make(map[string]fieldSummary, len(collated))}
	for name, value := range collated {
		summary.Fields[name] = fieldSummary{DType: value.Dtype().String(), Shape: []int(value.Shape())}
	}
	return summary
}

func processBatches(wg *sync.WaitGroup, inputChannel chan []collators.Example, processedChannel chan []byte, errorsChannel chan error, c collator) {
	defer wg.Done()
	for batch := range inputChannel {
		collated, err := c.Collate(batch)
		if err != nil {
			errorsChannel <- err
			continue
		}
		outputBytes, marshallErr := json.Marshal(summarize(batch, collated))
		if marshallErr != nil {
			errorsChannel <- marshallErr
			continue
		}
		processedChannel <- outputBytes
	}
}

func writeOutputs(wg *sync.WaitGroup, processedChannel chan []byte, errorChannel chan error, writeTarget io.Writer, runErrs *[]error) {
	defer wg.Done()
	for processedChannel != nil || errorChannel != nil {
		select {
		case output, ok := <-processedChannel:
			if !ok {
				processedChannel = nil
				continue
			}
			if _, err := writeTarget.Write(append(output, '\n')); err != nil {
				*runErrs = append(*runErrs, err)
			}
		case err, ok := <-errorChannel:
			if !ok {
				errorChannel = nil
				continue
			}
			*runErrs = append(*runErrs, err)
		}
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:     "vlcollate",
		Usage:    "Multi-modal batch collation from the command line",
		Commands: []*cli.Command{collateCommand, downloadCommand},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
