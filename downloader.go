//go:build !NODOWNLOAD

package vlcollate

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gomlx/go-huggingface/hub"
	"github.com/phuslu/log"

	"github.com/knights-analytics/vlcollate/util/fileutil"
)

// DownloadOptions is a struct of options that can be passed to DownloadTokenizer.
type DownloadOptions struct {
	AuthToken             string
	Branch                string
	MaxRetries            int
	RetryInterval         int
	ConcurrentConnections int
	Verbose               bool
}

// NewDownloadOptions creates new DownloadOptions struct with default values.
// Override the values to specify different download options.
func NewDownloadOptions() DownloadOptions {
	d := DownloadOptions{}
	d.Branch = "main"
	d.MaxRetries = 5
	d.RetryInterval = 5
	d.ConcurrentConnections = 5
	return d
}

// DownloadTokenizer downloads the tokenizer of a huggingface repository into
// destination/<owner>_<name> and returns that folder. The repository must have a tokenizer.json.
func DownloadTokenizer(ctx context.Context, repoName string, destination string, options DownloadOptions) (string, error) {
	repoP := repoName
	if strings.Contains(repoP, ":") {
		repoP = strings.Split(repoName, ":")[0]
	}
	tokenizerDir := path.Join(destination, strings.ReplaceAll(repoP, "/", "_"))

	repo := hub.New(repoName)
	if options.AuthToken != "" {
		repo = repo.WithAuth(options.AuthToken)
	}
	if options.ConcurrentConnections > 0 {
		repo.MaxParallelDownload = options.ConcurrentConnections
	}
	if options.Verbose {
		repo.Verbosity = 1
		repo.WithProgressBar(true)
	} else {
		repo.Verbosity = 0
		repo.WithProgressBar(false)
	}
	if options.Branch != "" {
		repo.WithRevision(options.Branch)
	}

	if err := downloadInfo(repo, options); err != nil {
		return "", err
	}
	var fileNames []string
	for fileName, err := range repo.IterFileNames() {
		if err != nil {
			return "", err
		}
		fileNames = append(fileNames, fileName)
	}
	downloadFiles, err := selectTokenizerFiles(fileNames)
	if err != nil {
		return "", fmt.Errorf("%s: %w", repoName, err)
	}

	if err := fileutil.CreateDir(ctx, tokenizerDir); err != nil {
		return "", err
	}
	for i := range options.MaxRetries {
		downloadPaths, downloadErr := repo.DownloadFiles(downloadFiles...)
		if downloadErr != nil {
			if options.Verbose {
				log.Warn().Int("attempt", i+1).Int("maxRetries", options.MaxRetries).Err(downloadErr).Msg("download failed")
			}
			time.Sleep(time.Duration(options.RetryInterval) * time.Second)
			continue
		}

		for j, downloadPath := range downloadPaths {
			truePath, symErr := filepath.EvalSymlinks(downloadPath)
			if symErr != nil {
				return "", symErr
			}
			if copyErr := fileutil.CopyFile(ctx, truePath, fileutil.PathJoinSafe(tokenizerDir, path.Base(downloadFiles[j]))); copyErr != nil {
				return "", copyErr
			}
		}

		if options.Verbose {
			log.Info().Str("repo", repoName).Str("destination", tokenizerDir).Msg("download completed")
		}
		return tokenizerDir, nil
	}

	return "", fmt.Errorf("failed to download %s after %d attempts", repoName, options.MaxRetries)
}

func downloadInfo(repo *hub.Repo, options DownloadOptions) error {
	var err error
	for i := range max(options.MaxRetries, 1) {
		if err = repo.DownloadInfo(false); err == nil {
			return nil
		}
		if options.Verbose {
			log.Warn().Int("attempt", i+1).Int("maxRetries", options.MaxRetries).Err(err).Msg("list repo failed")
		}
		if i+1 < options.MaxRetries {
			time.Sleep(time.Duration(options.RetryInterval) * time.Second)
		}
	}
	return err
}

// selectTokenizerFiles picks tokenizer.json and its companion files out of a repository listing.
func selectTokenizerFiles(fileNames []string) ([]string, error) {
	tokenizerPath := ""
	var toDownload []string
	for _, fileName := range fileNames {
		switch filepath.Base(fileName) {
		case "tokenizer.json":
			if tokenizerPath == "" || len(fileName) < len(tokenizerPath) {
				tokenizerPath = fileName
			}
		case "special_tokens_map.json", "tokenizer_config.json", "preprocessor_config.json":
			if filepath.Dir(fileName) == "." {
				toDownload = append(toDownload, fileName)
			}
		}
	}
	if tokenizerPath == "" {
		return nil, errors.New("repository does not have a tokenizer.json file")
	}
	return append(toDownload, tokenizerPath), nil
}
