package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/screenzoom/internal/activity"
	"github.com/ivlev/screenzoom/internal/analyzer"
	"github.com/ivlev/screenzoom/internal/config"
	"github.com/ivlev/screenzoom/internal/director"
	"github.com/ivlev/screenzoom/internal/engine"
	"github.com/ivlev/screenzoom/internal/history"
	"github.com/ivlev/screenzoom/internal/project"
	"github.com/ivlev/screenzoom/internal/renderer"
	"github.com/ivlev/screenzoom/internal/source"
	"github.com/ivlev/screenzoom/internal/system"
	"github.com/ivlev/screenzoom/internal/timeline"
	"github.com/ivlev/screenzoom/internal/video"
	"github.com/ivlev/screenzoom/internal/watch"
)

// app carries the loaded configuration to the commands.
type app struct {
	cfg *config.Config
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp() *cli.App {
	a := &app{cfg: config.DefaultConfig()}
	cliApp := &cli.App{
		Name:    "screenzoom",
		Usage:   "Автоматический зум и эффекты для записи экрана",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "Путь к YAML конфигу (по умолчанию: screenzoom.yaml или ~/.config/screenzoom/config.yaml)"},
			&cli.StringFlag{Name: "log-level", Usage: "Уровень логов: debug, info, warn, error"},
		},
		Before: a.setup,
		Commands: []*cli.Command{
			a.generateCmd(),
			a.evaluateCmd(),
			a.exportCmd(),
			a.previewCmd(),
			a.historyCmd(),
			a.watchCmd(),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	cliApp.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return cliApp
}

func (a *app) setup(c *cli.Context) error {
	var (
		cfg *config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadFromDefaultPath()
	}
	if err != nil {
		return fmt.Errorf("ошибка чтения конфига: %w", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("некорректный конфиг: %w", err)
	}

	level, ok, _ := config.ParseLogLevel(cfg.LogLevel)
	if ok {
		system.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	}
	a.cfg = cfg
	return nil
}

// projectPath returns the --project flag or the newest project in the projects dir.
func (a *app) projectPath(c *cli.Context) (string, error) {
	if p := c.String("project"); p != "" {
		return p, nil
	}
	latest, err := project.FindLatestProject(a.cfg.ProjectsDir)
	if err != nil {
		return "", fmt.Errorf("%w. Укажите --project", err)
	}
	fmt.Printf("[*] Выбран проект: %s\n", latest)
	return latest, nil
}

func projectFlag() cli.Flag {
	return &cli.StringFlag{Name: "project", Aliases: []string{"p"}, Usage: "Файл проекта (по умолчанию: самый свежий в projects/)"}
}

// generateCmd creates the generate command.
func (a *app) generateCmd() *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "Сгенерировать таймлайн по записи активности",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "recording", Aliases: []string{"r"}, Usage: "Запись активности YAML/JSON (по умолчанию: самый свежий файл в input/)"},
			&cli.StringFlag{Name: "video", Usage: "Видео записи экрана (по умолчанию: самое свежее рядом с записью)"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Файл проекта (если пусто, генерируется в projects/)"},
			&cli.StringFlag{Name: "name", Usage: "Имя проекта"},
			&cli.BoolFlag{Name: "saliency", Usage: "Уточнять центр зума по содержимому кадра"},
		},
		Action: func(c *cli.Context) error {
			ctx := c.Context
			recPath := c.String("recording")
			if recPath == "" {
				latest, err := system.FindLatestFile("input", system.RecordingExtensions)
				if err != nil {
					return fmt.Errorf("%v. Положите запись активности в input/", err)
				}
				recPath = latest
				fmt.Printf("[*] Выбрана запись: %s\n", recPath)
			}
			rec, err := activity.Load(recPath)
			if err != nil {
				return err
			}

			videoPath := c.String("video")
			if videoPath == "" {
				if latest, err := system.FindLatestFile(recPath, system.VideoExtensions); err == nil {
					videoPath = latest
					fmt.Printf("[*] Выбрано видео: %s\n", videoPath)
				}
			}

			media := project.Media{VideoPath: videoPath, RecordingPath: recPath, Duration: rec.End()}
			d := &director.Director{Settings: a.cfg.Director}

			if videoPath != "" {
				info, err := system.ProbeVideo(ctx, videoPath)
				if err != nil {
					return fmt.Errorf("ошибка чтения видео: %w", err)
				}
				media.Width, media.Height, media.FPS = info.Width, info.Height, info.FPS
				media.Duration = max(media.Duration, info.Duration)

				if c.Bool("saliency") || a.cfg.Analyzer.Enabled {
					det, err := analyzer.NewDetector(a.cfg.Analyzer.Detector)
					if err != nil {
						return err
					}
					src, err := source.Open(ctx, videoPath, info.FPS)
					if err != nil {
						return fmt.Errorf("ошибка открытия видео: %w", err)
					}
					defer src.Close()
					d.Saliency = analyzer.NewFrameSaliency(src, det)
					fmt.Printf("[*] Анализ содержимого кадров: %s\n", a.cfg.Analyzer.Detector)
				}
			}

			tl, report := d.Generate(ctx, rec)
			if media.Duration > tl.Duration {
				tl.Duration = media.Duration
			}

			name := c.String("name")
			if name == "" {
				name = strings.TrimSuffix(filepath.Base(recPath), filepath.Ext(recPath))
			}
			p, err := project.NewProject(name, media, tl, a.cfg.Render)
			if err != nil {
				return err
			}

			out := c.String("output")
			if out == "" {
				out = project.GenerateProjectPath(a.cfg.ProjectsDir)
			}
			if err := p.Save(out); err != nil {
				return fmt.Errorf("ошибка сохранения проекта: %w", err)
			}

			fmt.Printf("[*] Активностей: %d | Сессий: %d | Зум: %d | Клики: %d | Курсор: %d | Клавиши: %d (%.2fs)\n",
				report.Activities, report.Sessions,
				report.Counts[timeline.KindTransform], report.Counts[timeline.KindRipple],
				report.Counts[timeline.KindCursor], report.Counts[timeline.KindKeystroke],
				report.Elapsed.Seconds())
			fmt.Printf("[+++] Успех! Проект сохранен: %s\n", out)
			return nil
		},
	}
}

// evaluateCmd creates the evaluate command.
func (a *app) evaluateCmd() *cli.Command {
	return &cli.Command{
		Name:  "evaluate",
		Usage: "Показать состояние кадра в момент времени (YAML)",
		Flags: []cli.Flag{
			projectFlag(),
			&cli.Float64Flag{Name: "time", Aliases: []string{"t"}, Usage: "Время в секундах"},
		},
		Action: func(c *cli.Context) error {
			path, err := a.projectPath(c)
			if err != nil {
				return err
			}
			p, err := project.Load(path)
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(renderer.Evaluate(p.Timeline, c.Float64("time")))
			if err != nil {
				return err
			}
			_, err = c.App.Writer.Write(data)
			return err
		},
	}
}

// renderSettings layers the project's settings over the config and the flags over both.
func (a *app) renderSettings(c *cli.Context, p *project.Project) engine.RenderSettings {
	s := a.cfg.Render
	if p.Render.FPS > 0 {
		s = p.Render
	}
	if c.IsSet("fps") {
		s.FPS = c.Float64("fps")
	}
	if c.IsSet("quality") {
		s.Quality = engine.Quality(c.String("quality"))
	}
	if c.IsSet("width") || c.IsSet("height") {
		s.Width, s.Height = c.Int("width"), c.Int("height")
	}
	if c.IsSet("keep-partial") {
		s.KeepPartial = c.Bool("keep-partial")
	}
	if c.IsSet("debug") {
		s.Debug = c.Bool("debug")
	}
	if a.cfg.Render.Encoder != "" {
		s.Encoder = a.cfg.Render.Encoder
	}
	if c.Bool("audio") && p.Media.VideoPath != "" {
		s.AudioSource = p.Media.VideoPath
	}
	s.Output = c.String("output")
	if s.Output == "" {
		cleanName := strings.ReplaceAll(p.Name, " ", "_")
		timestamp := time.Now().Format("2006-01-02_15-04-05")
		s.Output = filepath.Join("output", fmt.Sprintf("%s_%s.mp4", cleanName, timestamp))
	}
	return s
}

func renderFlags() []cli.Flag {
	return []cli.Flag{
		projectFlag(),
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Путь к видео (если пусто, генерируется автоматически в output/)"},
		&cli.Float64Flag{Name: "fps", Usage: "FPS"},
		&cli.StringFlag{Name: "quality", Aliases: []string{"q"}, Usage: "Качество: low, medium, high, original"},
		&cli.IntFlag{Name: "width", Usage: "Ширина (0 - как у источника)"},
		&cli.IntFlag{Name: "height", Usage: "Высота (0 - как у источника)"},
		&cli.BoolFlag{Name: "audio", Value: true, Usage: "Добавить звук из исходного видео"},
	}
}

// exportCmd creates the export command.
func (a *app) exportCmd() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Экспортировать видео с эффектами (Ctrl-C - отмена)",
		Flags: append(renderFlags(),
			&cli.BoolFlag{Name: "keep-partial", Usage: "Сохранить недописанный файл при ошибке или отмене"},
			&cli.BoolFlag{Name: "debug", Usage: "Печатать QR-код со временем кадра"},
			&cli.IntFlag{Name: "workers", Usage: "Потоки композитинга (0 - авто)"},
			&cli.BoolFlag{Name: "no-history", Usage: "Не записывать экспорт в историю"},
		),
		Action: func(c *cli.Context) error {
			path, err := a.projectPath(c)
			if err != nil {
				return err
			}
			p, err := project.Load(path)
			if err != nil {
				return err
			}
			if p.Media.VideoPath == "" {
				return fmt.Errorf("в проекте не указано видео")
			}
			settings := a.renderSettings(c, p)
			os.MkdirAll(filepath.Dir(settings.Output), 0755)

			ctx := c.Context
			src, err := source.Open(ctx, p.Media.VideoPath, settings.FPS)
			if err != nil {
				return fmt.Errorf("ошибка инициализации источника: %w", err)
			}
			defer src.Close()

			exp := engine.NewExporter(src)
			exp.Workers = a.cfg.Workers
			if c.IsSet("workers") {
				exp.Workers = c.Int("workers")
			}
			if !c.Bool("no-history") {
				store, err := history.Open(a.cfg.HistoryDir)
				if err != nil {
					fmt.Printf("[!] История недоступна: %v\n", err)
				} else {
					defer store.Close()
					exp.History = store
				}
			}

			fmt.Println("--- [SCREENZOOM: EXPORT] ---")
			fmt.Printf("[*] Источник: %s | Проект: %s\n", p.Media.VideoPath, p.Name)
			fmt.Printf("[*] %.0f FPS | Качество: %s | Выход: %s\n", settings.FPS, settings.Quality, settings.Output)
			fmt.Println("-----------------------------")

			h, err := exp.Start(ctx, p.ID, p.Timeline, settings)
			if err != nil {
				return err
			}
			ev := waitExport(h)
			fmt.Println()

			switch ev.State {
			case engine.Completed:
				fps := float64(ev.Frames) / max(ev.Elapsed.Seconds(), 1e-9)
				fmt.Printf("[*] Кадров: %d | Время: %.2fs | Effective FPS: %.2f\n", ev.Frames, ev.Elapsed.Seconds(), fps)
				fmt.Printf("[+++] Успех! Результат: %s\n", ev.Path)
				return nil
			case engine.Cancelled:
				fmt.Printf("[!] Экспорт отменен на кадре %d/%d\n", ev.Frames, ev.Total)
				if ev.Path != "" {
					fmt.Printf("[*] Частичный результат: %s\n", ev.Path)
				}
				return nil
			default:
				if ev.Path != "" {
					fmt.Printf("[*] Частичный результат: %s\n", ev.Path)
				}
				return ev.Err
			}
		},
	}
}

// waitExport prints progress until the run ends. Ctrl-C cancels the run.
func waitExport(h *engine.Handle) engine.Event {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	progress := h.Progress()
	for {
		select {
		case p, ok := <-progress:
			if !ok {
				progress = nil
				continue
			}
			fmt.Printf("\r[>] Кадр %d/%d (%.0f%%) | ETA %s   ", p.Frame, p.Total, p.Fraction*100, p.ETA.Round(time.Second))
		case <-sig:
			fmt.Printf("\n[!] Отмена экспорта...\n")
			h.Cancel()
		case ev := <-h.Done():
			return ev
		}
	}
}

// previewCmd creates the preview command.
func (a *app) previewCmd() *cli.Command {
	return &cli.Command{
		Name:  "preview",
		Usage: "Быстрый предпросмотр камеры через zoompan без эффектов",
		Flags: append(renderFlags(),
			&cli.Float64Flag{Name: "start", Usage: "Начало (сек)"},
			&cli.Float64Flag{Name: "duration", Aliases: []string{"d"}, Usage: "Длительность (сек, 0 - до конца)"},
		),
		Action: func(c *cli.Context) error {
			path, err := a.projectPath(c)
			if err != nil {
				return err
			}
			p, err := project.Load(path)
			if err != nil {
				return err
			}
			if p.Media.VideoPath == "" {
				return fmt.Errorf("в проекте не указано видео")
			}
			settings := a.renderSettings(c, p)
			w, h := settings.Width, settings.Height
			if w == 0 {
				w, h = p.Media.Width&^1, p.Media.Height&^1
			}
			fps := int(settings.FPS + 0.5)

			filter := renderer.ZoomPanFilter(p.Timeline.Transform, fps, w, h)
			opts := video.Options{
				EncoderName: settings.EncoderName(),
				Bitrate:     settings.Bitrate(w, h),
				CRF:         settings.CRF(),
			}
			os.MkdirAll(filepath.Dir(settings.Output), 0755)

			fmt.Printf("[*] Предпросмотр: %dx%d @ %d FPS\n", w, h, fps)
			if err := video.RenderPreview(c.Context, p.Media.VideoPath, settings.Output, filter, c.Float64("start"), c.Float64("duration"), opts); err != nil {
				return err
			}
			fmt.Printf("[+++] Успех! Результат: %s\n", settings.Output)
			return nil
		},
	}
}

// historyCmd creates the history command.
func (a *app) historyCmd() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Показать историю экспортов проекта",
		Flags: []cli.Flag{
			projectFlag(),
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20, Usage: "Сколько записей показать (0 - все)"},
		},
		Action: func(c *cli.Context) error {
			path, err := a.projectPath(c)
			if err != nil {
				return err
			}
			p, err := project.Load(path)
			if err != nil {
				return err
			}
			store, err := history.Open(a.cfg.HistoryDir)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.List(c.Context, p.ID, c.Int("limit"))
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintf(c.App.Writer, "[*] Экспортов проекта %s еще не было\n", p.Name)
				return nil
			}
			for _, r := range runs {
				line := fmt.Sprintf("[%s] %-9s | %d/%d кадров | %.0f FPS %s | %.2fs",
					r.StartedAt.Format("2006-01-02 15:04:05"), r.State, r.Frames, r.Total, r.FPS, r.Quality, r.Elapsed.Seconds())
				if r.Output != "" {
					line += " | " + r.Output
				}
				if r.Error != "" {
					line += " | " + r.Error
				}
				fmt.Fprintln(c.App.Writer, line)
			}
			return nil
		},
	}
}

// watchCmd creates the watch command.
func (a *app) watchCmd() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Перегенерировать таймлайн при изменении записи активности",
		Flags: []cli.Flag{
			projectFlag(),
			&cli.StringFlag{Name: "recording", Aliases: []string{"r"}, Usage: "Запись активности (по умолчанию: из проекта)"},
			&cli.DurationFlag{Name: "debounce", Value: watch.DefaultDebounce, Usage: "Пауза после последней записи"},
		},
		Action: func(c *cli.Context) error {
			path, err := a.projectPath(c)
			if err != nil {
				return err
			}
			p, err := project.Load(path)
			if err != nil {
				return err
			}
			recPath := c.String("recording")
			if recPath == "" {
				recPath = p.Media.RecordingPath
			}
			if recPath == "" {
				return fmt.Errorf("не указана запись активности")
			}

			w, err := watch.NewWatcher(c.Duration("debounce"), recPath)
			if err != nil {
				return err
			}
			defer w.Stop()
			w.Start()

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			doc := timeline.NewDocument(p.Timeline)
			fmt.Printf("[*] Слежу за %s (Ctrl-C - выход)\n", recPath)
			for {
				select {
				case <-ctx.Done():
					fmt.Println("[*] Остановлено")
					return nil
				case err := <-w.Errors:
					fmt.Printf("[!] Ошибка наблюдения: %v\n", err)
				case <-w.Events:
					if err := a.regenerate(ctx, doc, p, recPath, path); err != nil {
						fmt.Printf("[!] %v\n", err)
					}
				}
			}
		},
	}
}

// regenerate replaces every track of doc with ones generated from the
// recording and saves the project.
func (a *app) regenerate(ctx context.Context, doc *timeline.Document, p *project.Project, recPath, projectPath string) error {
	rec, err := activity.Load(recPath)
	if err != nil {
		return err
	}
	generated, report := director.Generate(ctx, rec, a.cfg.Director)
	if _, err := doc.Apply(director.Regenerate(generated)); err != nil {
		return fmt.Errorf("ошибка обновления таймлайна: %w", err)
	}
	p.Timeline = doc.Snapshot()
	if err := p.Save(projectPath); err != nil {
		return fmt.Errorf("ошибка сохранения проекта: %w", err)
	}
	fmt.Printf("[*] Таймлайн обновлен: сессий %d, ключевых кадров %d (undo: %d)\n",
		report.Sessions, p.Timeline.KeyframeCount(), doc.UndoDepth())
	return nil
}
