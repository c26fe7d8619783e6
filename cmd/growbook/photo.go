package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"growbook/internal/app"
	"growbook/internal/photos"
)

func (c *cli) photoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "photo",
		Short: "Archive and list plant photos",
	}
	cmd.AddCommand(c.photoAddCmd(), c.photoListCmd())
	return cmd
}

type photoAdded struct {
	Photo    photos.Photo `json:"photo" yaml:"photo"`
	Analysis string       `json:"analysis,omitempty" yaml:"analysis,omitempty"`
}

func (c *cli) photoAddCmd() *cobra.Command {
	var (
		file    string
		dataURI string
		analyze bool
	)
	cmd := &cobra.Command{
		Use:   "add <plant-id>",
		Short: "Archive a photo for a plant, optionally sending it for analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uri := dataURI
			if file != "" {
				var err error
				if uri, err = fileDataURI(file); err != nil {
					return err
				}
			}
			return c.withSession(cmd, func(ctx context.Context, s *app.Context) error {
				svc := s.Photos(nil)
				photo, err := svc.Archive(ctx, args[0], uri)
				if err != nil {
					return err
				}
				out := photoAdded{Photo: photo}
				if analyze {
					res, err := svc.Analyze(ctx, uri)
					if err != nil {
						return fmt.Errorf("photo archived as %s but analysis failed: %w", photo.Key, err)
					}
					out.Analysis = res.AnalysisResult
				}
				return c.render(out, func(t *tableWriter) {
					t.row("KEY", "TYPE", "BYTES")
					t.row(photo.Key, photo.ContentType, strconv.FormatInt(photo.Size, 10))
					if out.Analysis != "" {
						t.row("")
						t.row("ANALYSIS")
						t.row(out.Analysis)
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "image file to archive")
	cmd.Flags().StringVar(&dataURI, "data-uri", "", "photo as data:<mimetype>;base64,<payload>")
	cmd.Flags().BoolVar(&analyze, "analyze", false, "send the photo to the configured analyzer")
	cmd.MarkFlagsOneRequired("file", "data-uri")
	cmd.MarkFlagsMutuallyExclusive("file", "data-uri")
	return cmd
}

func (c *cli) photoListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <plant-id>",
		Short: "List a plant's archived photos",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd, func(ctx context.Context, s *app.Context) error {
				list, err := s.Photos(nil).List(ctx, args[0])
				if err != nil {
					return err
				}
				return c.render(list, func(t *tableWriter) {
					t.row("KEY", "TYPE", "BYTES", "ARCHIVED")
					for _, p := range list {
						t.row(p.Key, p.ContentType, strconv.FormatInt(p.Size, 10), p.ArchivedAt.UTC().Format("2006-01-02 15:04:05"))
					}
				})
			})
		},
	}
}

// fileDataURI reads an image and encodes it as a data URI, sniffing the type.
func fileDataURI(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", errors.New("photo file is empty")
	}
	mimeType := http.DetectContentType(data)
	mimeType, _, _ = strings.Cut(mimeType, ";")
	return photos.DataURI{MIMEType: mimeType, Data: data}.String(), nil
}

