// Command hakodl runs one acquisition or (un)packaging session: fetch a
// novel's catalog, download selected volumes, package the canonical
// on-disk form into an e-book container, or unpack a container back into
// that form, then exit (spec §4.Z2).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"time"

	"github.com/hakoarchive/hakodl/internal/booksindex"
	"github.com/hakoarchive/hakodl/internal/catalog"
	"github.com/hakoarchive/hakodl/internal/config"
	"github.com/hakoarchive/hakodl/internal/downloader"
	"github.com/hakoarchive/hakodl/internal/fabric"
	"github.com/hakoarchive/hakodl/internal/packager"
	"github.com/hakoarchive/hakodl/internal/proxypool"
	"github.com/hakoarchive/hakodl/internal/record"
	"github.com/hakoarchive/hakodl/internal/unpackager"
	"github.com/hakoarchive/hakodl/internal/util"
)

const version = "0.1.0"

// stringList accumulates repeated -p/--proxy flag occurrences.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	cfgPath := flag.String("cfg", "hakodl.yaml", "path to the YAML config file")
	verbose := flag.Bool("v", false, "verbose logging")
	showVersion := flag.Bool("version", false, "print the version and exit")
	var proxies stringList
	flag.Var(&proxies, "p", "proxy URL (repeatable); overrides the config file's proxy list")
	flag.Parse()

	if *showVersion {
		fmt.Println("hakodl " + version)
		return
	}
	if *verbose {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	args := flag.Args()
	if len(args) == 0 {
		log.Fatalf("usage: hakodl [-cfg file] [-p proxy] [-v] <fetch-catalog|download|pack|unpack> [args...]")
	}
	verb, rest := args[0], args[1:]

	cfg, err := loadOrInitConfig(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if len(proxies) > 0 {
		cfg.Proxies = proxies
	}

	ctx := context.Background()

	switch verb {
	case "fetch-catalog":
		if err := runFetchCatalog(ctx, cfg, rest); err != nil {
			log.Fatalf("fetch-catalog: %v", err)
		}
	case "download":
		if err := runDownload(ctx, cfg, rest); err != nil {
			log.Fatalf("download: %v", err)
		}
	case "pack":
		if err := runPack(cfg, rest); err != nil {
			log.Fatalf("pack: %v", err)
		}
	case "unpack":
		if err := runUnpack(rest); err != nil {
			log.Fatalf("unpack: %v", err)
		}
	default:
		log.Fatalf("unknown verb %q", verb)
	}
}

// loadOrInitConfig loads cfgPath, writing a default config there first if
// it does not yet exist (mirrors the teacher's first-run bootstrap).
func loadOrInitConfig(cfgPath string) (*config.Config, error) {
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		cfg := config.Default()
		if err := config.Save(cfgPath, cfg); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
		log.Printf("wrote default config to %s", cfgPath)
		return cfg, nil
	}
	return config.Load(cfgPath)
}

func buildFabric(cfg *config.Config) (*fabric.Fabric, error) {
	var pool *proxypool.Pool
	if len(cfg.Proxies) > 0 {
		p, err := proxypool.NewPool(cfg.Proxies)
		if err != nil {
			return nil, fmt.Errorf("build proxy pool: %w", err)
		}
		pool = p
	}

	headers := map[string]string{"User-Agent": cfg.Fabric.UserAgent}
	if cfg.Fabric.Referer != "" {
		headers["Referer"] = cfg.Fabric.Referer
	}

	return fabric.New(fabric.Config{
		PrimaryHosts:        cfg.Fabric.PrimaryHosts,
		ImageHosts:          cfg.Fabric.ImageHosts,
		Headers:             headers,
		Timeout:             time.Duration(cfg.Fabric.TimeoutSeconds) * time.Second,
		AntiBanInterval:     cfg.Fabric.AntiBanInterval,
		AntiBanPause:        time.Duration(cfg.Fabric.AntiBanPauseSecs) * time.Second,
		MaxRetries:          cfg.Fabric.MaxRetries,
		MaxRateLimitRetries: cfg.Fabric.MaxRateLimitRetry,
	}, pool), nil
}

func runFetchCatalog(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("fetch-catalog", flag.ExitOnError)
	outDir := fs.String("o", cfg.Downloader.BaseDir, "base directory for the downloaded novel")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: hakodl fetch-catalog <url> [-o baseDir]")
	}
	url := fs.Arg(0)

	fab, err := buildFabric(cfg)
	if err != nil {
		return err
	}

	novel, err := catalog.FetchCatalog(ctx, fab, url, cfg.Fabric.PrimaryHosts)
	if err != nil {
		return fmt.Errorf("fetch catalog: %w", err)
	}

	baseDir := *outDir
	if baseDir == "" {
		baseDir = util.Slug(novel.Title)
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return fmt.Errorf("create base dir: %w", err)
	}

	data, err := catalog.Serialize(novel)
	if err != nil {
		return fmt.Errorf("serialize catalog: %w", err)
	}
	if err := os.WriteFile(filepath.Join(baseDir, "catalog.json"), data, 0o644); err != nil {
		return fmt.Errorf("write catalog.json: %w", err)
	}

	dl := downloader.New(novel, baseDir, fab)
	if _, err := dl.CreateMetadataFile(ctx); err != nil {
		return fmt.Errorf("create metadata file: %w", err)
	}

	if err := booksindex.New("books.json").Add(util.Slug(novel.Title)); err != nil {
		return fmt.Errorf("update books index: %w", err)
	}

	log.Printf("fetched %q: %d volume(s) into %s", novel.Title, len(novel.Volumes), baseDir)
	return nil
}

func runDownload(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("download", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: hakodl download <baseDir>")
	}
	baseDir := fs.Arg(0)

	data, err := os.ReadFile(filepath.Join(baseDir, "catalog.json"))
	if err != nil {
		return fmt.Errorf("read catalog.json: %w", err)
	}
	novel, err := catalog.Deserialize(data)
	if err != nil {
		return fmt.Errorf("parse catalog.json: %w", err)
	}

	fab, err := buildFabric(cfg)
	if err != nil {
		return err
	}
	dl := downloader.New(novel, baseDir, fab)

	for _, vol := range novel.Volumes {
		log.Printf("downloading volume %q", vol.Name)
		_, err := dl.DownloadVolume(ctx, vol, func(done, total int) {
			if total > 0 {
				log.Printf("  %s: %d/%d chapters", vol.Name, done, total)
			}
		})
		if err != nil {
			return fmt.Errorf("download volume %q: %w", vol.Name, err)
		}
	}
	return nil
}

func runPack(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("pack", flag.ExitOnError)
	volumeFile := fs.String("volume", "", "pack only this volume record filename instead of merging all volumes")
	compress := fs.Bool("compress", cfg.Packager.CompressImages, "transcode images to JPEG")
	outDir := fs.String("o", cfg.Packager.OutputDir, "output directory for the built container(s)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: hakodl pack <baseDir> [-volume file.json] [-compress] [-o outputDir]")
	}
	baseDir := fs.Arg(0)

	p := packager.New(baseDir, packager.Config{CompressImages: *compress, OutputDir: *outDir}, nil)

	var (
		outPath string
		err     error
	)
	if *volumeFile != "" {
		outPath, err = p.BuildVolume(*volumeFile)
	} else {
		filenames, derr := volumeRecordFilenames(baseDir)
		if derr != nil {
			return derr
		}
		outPath, err = p.BuildMerged(filenames)
	}
	if err != nil {
		return fmt.Errorf("build container: %w", err)
	}

	log.Printf("built %s", outPath)
	return nil
}

// volumeRecordFilenames lists every volume record filename metadata.json
// names, in no particular order — BuildMerged sorts them by their
// recorded order itself.
func volumeRecordFilenames(baseDir string) ([]string, error) {
	novel, err := record.LoadNovelRecord(filepath.Join(baseDir, "metadata.json"))
	if err != nil {
		return nil, fmt.Errorf("read metadata.json: %w", err)
	}
	if novel == nil {
		return nil, fmt.Errorf("metadata.json not found in %s", baseDir)
	}
	filenames := make([]string, len(novel.Volumes))
	for i, vd := range novel.Volumes {
		filenames[i] = vd.Filename
	}
	return filenames, nil
}

func runUnpack(args []string) error {
	fs := flag.NewFlagSet("unpack", flag.ExitOnError)
	outDir := fs.String("o", "", "output directory for the canonical on-disk form")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: hakodl unpack <container.epub> [-o outputDir]")
	}
	containerPath := fs.Arg(0)

	novel, err := unpackager.Unpack(containerPath, unpackager.Options{OutputDir: *outDir})
	if err != nil {
		return fmt.Errorf("unpack: %w", err)
	}

	log.Printf("unpacked %q: %d volume(s)", novel.NovelName, len(novel.Volumes))
	return nil
}
