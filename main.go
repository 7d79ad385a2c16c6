package main

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/bitrise-io/bitrise/models"
	"github.com/bitrise-io/go-steputils/stepconf"
	"github.com/bitrise-io/go-steputils/tools"
	"github.com/bitrise-io/go-utils/fileutil"
	"github.com/bitrise-io/go-utils/pathutil"
	"github.com/bitrise-io/go-utils/pretty"
	"github.com/bitrise-io/go-utils/v2/log"
	pathutilV2 "github.com/bitrise-io/go-utils/v2/pathutil"
	"github.com/bitrise-steplib/steps-nvme-test-report/test"
	"github.com/bitrise-steplib/steps-nvme-test-report/test/converters/nvmejson"
	"github.com/bitrise-steplib/steps-nvme-test-report/test/detector"
	"github.com/bitrise-steplib/steps-nvme-test-report/test/junit"
	"github.com/bitrise-steplib/steps-nvme-test-report/test/testreport"
	"github.com/goccy/go-json"
)

const (
	stepID      = "nvme-test-report"
	stepVersion = "1.0.0"
	reportTitle = "NVMe Test Report"
)

// Config ...
type Config struct {
	ReportPath      string `env:"report_path,required"`
	JUnitOutputPath string `env:"junit_output_path"`
	JSONOutputPath  string `env:"json_output_path"`
	ShowProgress    bool   `env:"show_progress,opt[true,false]"`
	DebugMode       bool   `env:"debug_mode,opt[true,false]"`
	AddonAPIBaseURL string `env:"addon_api_base_url"`
	AddonAPIToken   string `env:"addon_api_token"`
	AppSlug         string `env:"BITRISE_APP_SLUG"`
	BuildSlug       string `env:"BITRISE_BUILD_SLUG"`
}

var logger = log.NewLogger()

func fail(format string, v ...interface{}) {
	logger.Errorf(format, v...)
	os.Exit(1)
}

func main() {
	var config Config
	if err := stepconf.Parse(&config); err != nil {
		fail("Issue with input: %s", err)
	}

	stepconf.Print(config)
	logger.Println()
	logger.EnableDebugLog(config.DebugMode)

	absReportPth, err := pathutil.AbsPath(config.ReportPath)
	if err != nil {
		fail("Failed to expand path: %s, error: %s", config.ReportPath, err)
	}

	loader := newLoader(config)
	loader.OnParsed(func(report testreport.Report) {
		logger.Println()
		for _, line := range renderSummary(report) {
			logger.Printf("%s", line)
		}
		logger.Debugf("%s", pretty.Object(report))
	})

	if err := loader.RequestParse(absReportPth); err != nil {
		fail("%s", err)
	}

	report, ok := loader.Report()
	if !ok {
		fail("No report parsed from %s", absReportPth)
	}

	if err := exportOutputs(report, config); err != nil {
		fail("%s", err)
	}

	logger.Println()
	logger.Donef("Success")
}

func newLoader(config Config) *test.Loader {
	parser := nvmejson.NewParser(logger)
	if config.ShowProgress {
		parser.SetProgressWriter(os.Stderr)
	}

	changeDetector := detector.NewChangeDetector(detector.NewFileInfoProvider(), pathutilV2.NewPathModifier(), logger)

	return test.NewLoader(changeDetector, parser, logger)
}

func exportOutputs(report testreport.Report, config Config) error {
	outcomes := report.Outcomes()
	envs := map[string]string{
		"NVME_TEST_REPORT_PASS": strconv.Itoa(outcomes.Pass),
		"NVME_TEST_REPORT_FAIL": strconv.Itoa(outcomes.Fail),
		"NVME_TEST_REPORT_SKIP": strconv.Itoa(outcomes.Skip),
	}

	var xmlContent []byte
	if config.JUnitOutputPath != "" || config.AddonAPIToken != "" {
		var err error
		if xmlContent, err = junit.Convert(report).Marshal(); err != nil {
			return fmt.Errorf("failed to convert report to JUnit XML: %w", err)
		}
	}

	if config.JUnitOutputPath != "" {
		if err := fileutil.WriteBytesToFile(config.JUnitOutputPath, xmlContent); err != nil {
			return fmt.Errorf("failed to write JUnit XML (%s): %w", config.JUnitOutputPath, err)
		}
		envs["NVME_TEST_REPORT_JUNIT_PATH"] = config.JUnitOutputPath
	}

	if config.JSONOutputPath != "" {
		if err := writeReportJSON(report, config.JSONOutputPath); err != nil {
			return err
		}
	}

	for key, value := range envs {
		if err := tools.ExportEnvironmentWithEnvman(key, value); err != nil {
			return fmt.Errorf("failed to export %s, error: %s", key, err)
		}
		logger.Printf("The %s Environment Variable is now available (value: %s)", key, value)
	}

	if config.AddonAPIToken != "" {
		logger.Println()
		logger.Infof("Upload test results")

		if err := test.Upload(xmlContent, test.UploadParams{
			APIToken:        config.AddonAPIToken,
			EndpointBaseURL: config.AddonAPIBaseURL,
			AppSlug:         config.AppSlug,
			BuildSlug:       config.BuildSlug,
			Name:            reportTitle,
			StepInfo:        models.TestResultStepInfo{ID: stepID, Title: reportTitle, Version: stepVersion},
		}, logger); err != nil {
			logger.Warnf("Failed to upload test results: %s", err)
		} else {
			logger.Donef("Success")
		}
	}

	return nil
}

func writeReportJSON(report testreport.Report, pth string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := fileutil.WriteBytesToFile(pth, data); err != nil {
		return fmt.Errorf("failed to write report JSON (%s): %w", pth, err)
	}
	return nil
}

// renderSummary lays the report out as the case table of the report viewer.
// Absent fields are left empty.
func renderSummary(report testreport.Report) []string {
	title := reportTitle
	if report.Date != nil {
		title = *report.Date + " - " + reportTitle
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Time\tGT/s\tWidth\tCase\tResult\tScore")
	for _, c := range report.Cases {
		var timeCell, speedCell, widthCell, resultCell, scoreCell string
		if c.Time != nil {
			timeCell = strconv.FormatInt(*c.Time, 10)
		}
		if c.SpeedGTPerSec != nil {
			speedCell = strconv.FormatFloat(*c.SpeedGTPerSec, 'g', -1, 64)
		}
		if c.WidthLanes != nil {
			widthCell = strconv.FormatInt(*c.WidthLanes, 10)
		}
		if c.Result != nil {
			resultCell = c.Result.Symbol()
		}
		if c.Score != nil {
			scoreCell = c.Score.String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", timeCell, speedCell, widthCell, c.Name, resultCell, scoreCell)
	}
	if err := w.Flush(); err != nil {
		logger.Warnf("Failed to render summary: %s", err)
	}

	lines := []string{title}
	for _, line := range bytes.Split(bytes.TrimRight(buf.Bytes(), "\n"), []byte("\n")) {
		lines = append(lines, string(bytes.TrimRight(line, " ")))
	}
	return lines
}
