package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	enrollServer string
	enrollDir    string
)

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Bulk-enroll students from a directory of images",
	Long: `Enroll every image under a directory against a running server.
The directory layout is one subdirectory per student, named by student id,
each holding that student's face images:

  dataset/
    s001/ photo1.jpg photo2.jpg
    s002/ photo1.jpg`,
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().StringVar(&enrollServer, "server", "http://localhost:8400", "Base URL of the running server")
	enrollCmd.Flags().StringVar(&enrollDir, "dir", "", "Dataset directory (required)")
	_ = enrollCmd.MarkFlagRequired("dir")
}

// imageExts lists the file extensions treated as enrollable images.
var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".bmp": true, ".webp": true,
}

func runEnroll(cmd *cobra.Command, args []string) error {
	entries, err := os.ReadDir(enrollDir)
	if err != nil {
		return fmt.Errorf("read dataset directory: %w", err)
	}

	client := &http.Client{Timeout: 60 * time.Second}
	var enrolled, failed int

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		studentID := entry.Name()
		studentDir := filepath.Join(enrollDir, studentID)

		images, err := os.ReadDir(studentDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", studentID, err)
			failed++
			continue
		}

		for _, img := range images {
			if img.IsDir() || !imageExts[strings.ToLower(filepath.Ext(img.Name()))] {
				continue
			}
			path := filepath.Join(studentDir, img.Name())
			if err := enrollImage(client, studentID, path); err != nil {
				fmt.Fprintf(os.Stderr, "%s (%s): %v\n", studentID, img.Name(), err)
				failed++
				continue
			}
			fmt.Printf("enrolled %s <- %s\n", studentID, img.Name())
			enrolled++
		}
	}

	fmt.Printf("done: %d enrolled, %d failed\n", enrolled, failed)
	if failed > 0 {
		return fmt.Errorf("%d enrollments failed", failed)
	}
	return nil
}

func enrollImage(client *http.Client, studentID, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("student_id", studentID); err != nil {
		return err
	}
	fw, err := mw.CreateFormFile("image", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := fw.Write(data); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(enrollServer, "/")+"/enroll", &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var res struct {
		FacesFound int `json:"faces_found"`
		Saved      int `json:"saved"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return err
	}
	if res.Saved == 0 {
		return fmt.Errorf("no faces saved (found %d)", res.FacesFound)
	}
	return nil
}
