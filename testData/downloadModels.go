package main

import (
	"context"
	"os"

	"github.com/knights-analytics/vlcollate"
	"github.com/knights-analytics/vlcollate/util/fileutil"
)

// download the test tokenizers.

var tokenizers = []string{
	"KnightsAnalytics/all-MiniLM-L6-v2",
}

func main() {
	if ok, err := fileutil.FileExists("./models"); err == nil {
		if !ok {
			err = os.MkdirAll("./models", os.ModePerm)
			if err != nil {
				panic(err)
			}

			for _, name := range tokenizers {
				_, dlErr := vlcollate.DownloadTokenizer(context.Background(), name, "./models", vlcollate.NewDownloadOptions())
				if dlErr != nil {
					panic(dlErr)
				}
			}
		}
	} else {
		panic(err)
	}
}
