package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dehost-labs/dehost/internal/cliconfig"
	"github.com/dehost-labs/dehost/internal/dehostclient"
	"github.com/dehost-labs/dehost/internal/deploy"
	"github.com/dehost-labs/dehost/internal/output"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var deployCmd = &cobra.Command{
	Use:     "deploy",
	Short:   "Build the project and publish it to IPFS",
	GroupID: "deploy",
	Long: `Detects the project's framework, installs dependencies, builds it and uploads
the result to IPFS through Lighthouse. Requires LIGHTHOUSE_API_KEY in the
environment or a .env file.

When this machine is paired (dehost login) the deployment is also recorded on
your dashboard.`,
	Example: `  dehost deploy
  dehost deploy --dir ./site --skip-install
  dehost deploy --archive --domain blog.example.com`,
	RunE: runDeploy,
}

func deployFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("deploy", pflag.ContinueOnError)
	fs.String("dir", ".", "Project directory")
	fs.Bool("skip-install", false, "Do not run npm install before building")
	fs.Bool("no-record", false, "Do not record the deployment on the dashboard")
	fs.Bool("archive", false, "Upload a zip of the whole output directory instead of index.html")
	fs.String("domain", "", "Domain to record the deployment under (default: dehost.yaml domain or project name)")
	return fs
}

func runDeploy(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	flags := cmd.Flags()
	dir, _ := flags.GetString("dir")
	skipInstall, _ := flags.GetBool("skip-install")
	noRecord, _ := flags.GetBool("no-record")
	archive, _ := flags.GetBool("archive")
	domain, _ := flags.GetString("domain")

	lh, err := deploy.NewLighthouse(os.Getenv("LIGHTHOUSE_API_KEY"))
	if err != nil {
		return err
	}

	project, err := deploy.Inspect(dir)
	if err != nil {
		return err
	}
	output.Info("Detected %s project %q", project.Framework, project.Name())

	runner := deploy.ExecRunner{}
	if !skipInstall && project.NeedsInstall() {
		if err := output.Spin(ctx, "Installing dependencies...", func(ctx context.Context) error {
			return deploy.Install(ctx, runner, project)
		}); err != nil {
			return err
		}
	}
	if argv := project.BuildCommand(); len(argv) > 0 {
		if err := output.Spin(ctx, "Running "+strings.Join(argv, " ")+"...", func(ctx context.Context) error {
			return deploy.Build(ctx, runner, project)
		}); err != nil {
			return err
		}
	}

	outDir, err := project.OutputDir()
	if err != nil {
		return err
	}
	index, err := deploy.FindIndexHTML(outDir)
	if err != nil {
		return err
	}
	slog.Debug("build output", "dir", outDir, "index", index)

	upload, uploadName, files, err := openUpload(outDir, index, archive)
	if err != nil {
		return err
	}
	defer upload.Close()

	var res *deploy.UploadResult
	if err := output.Spin(ctx, fmt.Sprintf("Uploading %s to IPFS...", uploadName), func(ctx context.Context) error {
		var err error
		res, err = lh.Upload(ctx, uploadName, upload)
		return err
	}); err != nil {
		return err
	}

	url := lh.URL(res.Hash)
	output.Success("Deployment completed")
	fmt.Printf("IPFS link: %s\n", output.Link(url))

	if domain == "" {
		domain = project.Config.Domain
	}
	if domain == "" {
		domain = project.Name()
	}

	printDeploySummary(project, outDir, res, url, domain, files)

	if noRecord {
		return nil
	}
	recordDeployment(ctx, cmd, dehostclient.DeploymentRequest{
		Name:          project.Name(),
		Domain:        domain,
		CID:           res.Hash,
		DeploymentURL: url,
	})
	return nil
}

// openUpload returns the reader to upload: the located index.html, or a zip
// of outDir when archive is set. The returned closer removes any temp file.
func openUpload(outDir, index string, archive bool) (io.ReadCloser, string, int, error) {
	if !archive {
		f, err := os.Open(index)
		if err != nil {
			return nil, "", 0, err
		}
		return f, "index.html", 1, nil
	}

	tmp, err := os.CreateTemp("", "dehost-*.zip")
	if err != nil {
		return nil, "", 0, fmt.Errorf("create archive: %w", err)
	}
	n, err := deploy.ZipDir(outDir, tmp)
	if err == nil {
		_, err = tmp.Seek(0, io.SeekStart)
	}
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, "", 0, fmt.Errorf("create archive: %w", err)
	}
	return &tempFile{File: tmp}, filepath.Base(outDir) + ".zip", n, nil
}

type tempFile struct {
	*os.File
}

func (t *tempFile) Close() error {
	err := t.File.Close()
	os.Remove(t.Name())
	return err
}

func printDeploySummary(p *deploy.Project, outDir string, res *deploy.UploadResult, url, domain string, files int) {
	rel, err := filepath.Rel(p.Dir, outDir)
	if err != nil || rel == "" {
		rel = outDir
	}
	md := output.MarkdownTable("Deployment", [][2]string{
		{"Project", p.Name()},
		{"Framework", fmt.Sprint(p.Framework)},
		{"Output", rel},
		{"Files", strconv.Itoa(files)},
		{"Domain", domain},
		{"CID", res.Hash},
		{"Size", res.Size + " bytes"},
	}) + fmt.Sprintf("\n[%s](%s)\n", url, url)

	if !output.IsInteractive() {
		return
	}
	rendered, err := output.RenderMarkdown(md)
	if err != nil {
		slog.Debug("render deploy summary", "err", err)
		return
	}
	fmt.Print(rendered)
}

// recordDeployment attributes the deployment to the paired account. Failures
// are reported but do not fail the deploy; the content is already on IPFS.
func recordDeployment(ctx context.Context, cmd *cobra.Command, req dehostclient.DeploymentRequest) {
	sess, err := cliconfig.LoadSession()
	if err != nil {
		output.Warning("could not read session: %v", err)
		return
	}
	if sess == nil {
		output.Subtle("Not logged in; run `dehost login` to track deployments on your dashboard.")
		return
	}
	if sess.Token == "" {
		output.Warning("Session has no token; run `dehost login` again to record deployments.")
		return
	}

	server := sess.ServerURL
	if cmd.Flags().Changed("server") || server == "" {
		server = serverURL(cmd)
	}
	req.Session = sess.Token

	if _, err := dehostclient.New(server).RecordDeployment(ctx, req); err != nil {
		if errors.Is(err, dehostclient.ErrNotPaired) {
			output.Warning("Session is no longer paired; run `dehost login` again to record deployments.")
			return
		}
		output.Warning("could not record deployment: %v", err)
		return
	}
	output.Success("Recorded on your dashboard as %s", req.Domain)
}

func init() {
	deployCmd.Flags().AddFlagSet(deployFlags())
	deployCmd.Flags().AddFlagSet(serverFlags())
	rootCmd.AddCommand(deployCmd)
}
