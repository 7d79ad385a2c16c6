package test

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bitrise-io/bitrise/models"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/retryhttp"
	"github.com/goccy/go-json"
	"github.com/hashicorp/go-retryablehttp"
)

// maxXMLSize limits the size of the uploaded JUnit document
const maxXMLSize = 100 * 1024 * 1024 // 100 MiB

const resultFileName = "test_result.xml"

// FileInfo ...
type FileInfo struct {
	FileName string `json:"filename"`
	FileSize int    `json:"filesize"`
}

// UploadURL ...
type UploadURL struct {
	FileName string `json:"filename"`
	URL      string `json:"upload_url"`
}

// UploadRequest ...
type UploadRequest struct {
	Name string                    `json:"name"`
	Step models.TestResultStepInfo `json:"step_info"`
	FileInfo
}

// UploadResponse ...
type UploadResponse struct {
	ID string `json:"id"`
	UploadURL
}

// UploadParams addresses the build the report belongs to.
type UploadParams struct {
	APIToken        string
	EndpointBaseURL string
	AppSlug         string
	BuildSlug       string
	Name            string
	StepInfo        models.TestResultStepInfo
}

// Upload registers a test report for the build, uploads the JUnit XML and
// marks the report as uploaded.
func Upload(xmlContent []byte, params UploadParams, logger log.Logger) error {
	if len(xmlContent) > maxXMLSize {
		return fmt.Errorf("the size of the test result XML (%d MiB) exceeds the maximum allowed size of 100 MiB", len(xmlContent)/1024/1024)
	}

	logger.Printf("Uploading: %s", params.Name)

	u := reportUploader{
		client: retryhttp.NewClient(logger),
		params: params,
		logger: logger,
	}

	uploadResponse, err := u.create(UploadRequest{
		FileInfo: FileInfo{
			FileName: resultFileName,
			FileSize: len(xmlContent),
		},
		Name: params.Name,
		Step: params.StepInfo,
	})
	if err != nil {
		return fmt.Errorf("failed to initialise test result: %w", err)
	}

	if err := u.send(http.MethodPut, uploadResponse.URL, bytes.NewReader(xmlContent)); err != nil {
		return fmt.Errorf("failed to upload test result xml: %w", err)
	}

	if err := u.send(http.MethodPatch, u.reportsURL(uploadResponse.ID), strings.NewReader(`{"uploaded":true}`)); err != nil {
		return fmt.Errorf("failed to finalise test result: %w", err)
	}

	return nil
}

type reportUploader struct {
	client *retryablehttp.Client
	params UploadParams
	logger log.Logger
}

// reportsURL addresses the build's test reports, or one of them when id is set.
// The API token goes in the last path segment.
func (u reportUploader) reportsURL(id string) string {
	url := fmt.Sprintf("%s/apps/%s/builds/%s/test_reports", u.params.EndpointBaseURL, u.params.AppSlug, u.params.BuildSlug)
	if id != "" {
		url += "/" + id
	}
	if u.params.APIToken != "" {
		url += "/" + u.params.APIToken
	}
	return url
}

func (u reportUploader) create(uploadReq UploadRequest) (UploadResponse, error) {
	body, err := json.Marshal(uploadReq)
	if err != nil {
		return UploadResponse{}, fmt.Errorf("failed to json encode upload request: %w", err)
	}

	resp, err := u.do(http.MethodPost, u.reportsURL(""), bytes.NewReader(body))
	if err != nil {
		return UploadResponse{}, err
	}
	defer u.close(resp)

	var uploadResponse UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&uploadResponse); err != nil {
		return UploadResponse{}, fmt.Errorf("failed to decode upload response: %w", err)
	}
	if uploadResponse.URL == "" {
		return UploadResponse{}, fmt.Errorf("no upload url in response for %s", uploadReq.FileName)
	}

	return uploadResponse, nil
}

func (u reportUploader) send(method, url string, body io.Reader) error {
	resp, err := u.do(method, url, body)
	if err != nil {
		return err
	}
	u.close(resp)
	return nil
}

// do returns the response only for 2xx status codes; the caller closes its body.
func (u reportUploader) do(method, url string, body io.Reader) (*http.Response, error) {
	req, err := retryablehttp.NewRequest(method, url, body)
	if err != nil {
		return nil, err
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || 299 < resp.StatusCode {
		defer u.close(resp)

		bodyData, err := io.ReadAll(resp.Body)
		if err != nil {
			u.logger.Warnf("Failed to read response: %s", err)
			return nil, fmt.Errorf("unsuccessful status code: %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("unsuccessful status code: %d, response: %s", resp.StatusCode, bodyData)
	}

	return resp, nil
}

func (u reportUploader) close(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		u.logger.Warnf("Failed to close body: %s", err)
	}
}
