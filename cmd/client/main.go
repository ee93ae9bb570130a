package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"gitlab.com/dirk.krummacker/contacts-api/pkg/model"
)

// pngHeader is enough of a PNG file to be recognized as image/png.
const pngHeader = "\x89PNG\r\n\x1a\n"

// Usage example on the command line:
// > go run main.go -url=http://localhost:8080/api/contacts -sizes=100,500
func main() {
	baseURL := flag.String("url", "http://localhost:8080/api/contacts", "the base URL of the contacts API")
	sizesFlag := flag.String("sizes", "1000,5000,10000", "comma separated numbers of contacts per round")
	withImages := flag.Bool("images", true, "send an image with every create and update")
	flag.Parse()

	sizes, err := parseSizes(*sizesFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	c := &client{baseURL: strings.TrimSuffix(*baseURL, "/"), http: &http.Client{Timeout: 30 * time.Second}, images: *withImages}
	if err := c.benchmark(sizes); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type client struct {
	baseURL string
	http    *http.Client
	images  bool
}

func (c *client) benchmark(sizes []int) error {
	fmt.Println()
	fmt.Println("  Elements      POST       PUT       GET    DELETE ")
	fmt.Println("---------------------------------------------------")
	for _, loops := range sizes {
		fmt.Printf("%10d", loops)
		ids := make([]int64, 0, loops)

		// POST requests
		var duration time.Duration
		for i := 0; i < loops; i++ {
			contact, d, err := c.create()
			if err != nil {
				return err
			}
			ids = append(ids, contact.Id)
			duration += d
		}
		printAverage(duration, loops)

		steps := []func(id int64) (time.Duration, error){c.update, c.get, c.delete}
		for _, step := range steps {
			rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
			var duration time.Duration
			for _, id := range ids {
				d, err := step(id)
				if err != nil {
					return err
				}
				duration += d
			}
			printAverage(duration, loops)
		}
		fmt.Println()
	}
	return nil
}

// printAverage prints the average duration in microseconds.
func printAverage(total time.Duration, loops int) {
	fmt.Printf("%10d", total.Microseconds()/int64(loops))
}

func (c *client) create() (model.Contact, time.Duration, error) {
	var contact model.Contact
	body, contentType, err := c.form("Marcus", "Antonius", "")
	if err != nil {
		return contact, 0, err
	}
	resBody, d, err := c.send(http.MethodPost, c.baseURL, contentType, body, http.StatusCreated)
	if err != nil {
		return contact, 0, err
	}
	if err := json.Unmarshal(resBody, &contact); err != nil {
		return contact, 0, fmt.Errorf("could not unmarshal JSON: %w", err)
	}
	return contact, d, nil
}

func (c *client) update(id int64) (time.Duration, error) {
	body, contentType, err := c.form("Marcus", "Antonius", "Triumvir")
	if err != nil {
		return 0, err
	}
	_, d, err := c.send(http.MethodPut, fmt.Sprintf("%s/%d", c.baseURL, id), contentType, body, http.StatusOK)
	return d, err
}

func (c *client) get(id int64) (time.Duration, error) {
	_, d, err := c.send(http.MethodGet, fmt.Sprintf("%s/%d", c.baseURL, id), "", nil, http.StatusOK)
	return d, err
}

func (c *client) delete(id int64) (time.Duration, error) {
	_, d, err := c.send(http.MethodDelete, fmt.Sprintf("%s/%d", c.baseURL, id), "", nil, http.StatusOK)
	return d, err
}

// form builds a multipart request body with the contact fields and, if enabled, an image.
func (c *client) form(firstName, lastName, title string) (io.Reader, string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	fields := map[string]string{
		"firstName": firstName,
		"lastName":  lastName,
		"email":     strings.ToLower(firstName) + "@example.com",
		"phone":     "+39 999 777 555",
		"title":     title,
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if c.images {
		part, err := writer.CreateFormFile("image", "portrait.png")
		if err != nil {
			return nil, "", err
		}
		if _, err := io.WriteString(part, pngHeader); err != nil {
			return nil, "", err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &body, writer.FormDataContentType(), nil
}

func (c *client) send(method, requestURL, contentType string, body io.Reader, wantStatus int) ([]byte, time.Duration, error) {
	req, err := http.NewRequest(method, requestURL, body)
	if err != nil {
		return nil, 0, fmt.Errorf("could not create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	before := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("error making http request: %w", err)
	}
	defer res.Body.Close()
	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("could not read response body: %w", err)
	}
	duration := time.Since(before)
	if res.StatusCode != wantStatus {
		return nil, 0, fmt.Errorf("%s %s: unexpected status %d: %s", method, requestURL, res.StatusCode, resBody)
	}
	return resBody, duration, nil
}

func parseSizes(s string) ([]int, error) {
	var sizes []int
	for _, part := range strings.Split(s, ",") {
		var n int
		if _, err := fmt.Sscanf(strings.TrimSpace(part), "%d", &n); err != nil || n < 1 {
			return nil, fmt.Errorf("invalid size %q", part)
		}
		sizes = append(sizes, n)
	}
	return sizes, nil
}
