// Command bv-time-logger reconciles meeting effort and manual entries
// into Azure DevOps completed work
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/adapters/rest"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/core/variance"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/core/version"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/modkit"
	modmodule "github.com/bv-sergio-vargas/BV-Time-Logger/internal/modkit/module"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/config"
	perr "github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/errors"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/logger"
	phttp "github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/net/http"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/net/middleware"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/timeutil"

	reportmod "github.com/bv-sergio-vargas/BV-Time-Logger/internal/services/report/module"
	reportsvc "github.com/bv-sergio-vargas/BV-Time-Logger/internal/services/report/service"
	schedmod "github.com/bv-sergio-vargas/BV-Time-Logger/internal/services/scheduler/module"
	schedsvc "github.com/bv-sergio-vargas/BV-Time-Logger/internal/services/scheduler/service"
	syncdom "github.com/bv-sergio-vargas/BV-Time-Logger/internal/services/sync/domain"
	syncmod "github.com/bv-sergio-vargas/BV-Time-Logger/internal/services/sync/module"
	trackdom "github.com/bv-sergio-vargas/BV-Time-Logger/internal/services/tracking/domain"
	trackmod "github.com/bv-sergio-vargas/BV-Time-Logger/internal/services/tracking/module"
)

const usage = `bv-time-logger <comando> [opciones]

Comandos:
  sync      sincroniza reuniones y horas manuales hacia Azure DevOps
  manual    registra (o borra) una entrada manual de tiempo
  import    importa entradas manuales desde un CSV
  export    exporta las entradas manuales a CSV
  list      lista entradas manuales
  summary   resumen del almacén de entradas manuales
  report    genera reportes (diario, sprint, discrepancias)
  schedule  corre el demonio con el job de sincronización
  status    consulta el demonio en ejecución
  version   muestra la versión del binario

Use "bv-time-logger <comando> -h" para las opciones de cada comando.`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, usage)
		return 1
	}
	cmd, tail := args[0], args[1:]
	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		fmt.Println(usage)
		return 0
	}

	root := config.New()
	deps := modkit.Deps{Log: *logger.Get(), Cfg: root}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd {
	case "sync":
		err = cmdSync(ctx, deps, tail)
	case "manual":
		err = cmdManual(ctx, deps, tail)
	case "import":
		err = cmdImport(ctx, deps, tail)
	case "export":
		err = cmdExport(ctx, deps, tail)
	case "list":
		err = cmdList(ctx, deps, tail)
	case "summary":
		err = cmdSummary(ctx, deps, tail)
	case "report":
		err = cmdReport(ctx, deps, tail)
	case "schedule":
		err = cmdSchedule(ctx, deps, tail)
	case "status":
		err = cmdStatus(ctx, deps, tail)
	case "version":
		bi := version.Info()
		fmt.Printf("%s %s (commit %s, %s)\n", bi.Service, bi.Version, bi.Commit, bi.Date)
	default:
		fmt.Fprintf(os.Stderr, "comando desconocido %q\n\n%s\n", cmd, usage)
		return 1
	}

	switch {
	case err == nil:
		return 0
	case ctx.Err() != nil || perr.IsCode(err, perr.ErrorCodeCancelled):
		fmt.Fprintln(os.Stderr, "interrumpido")
		return 130
	default:
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		return 1
	}
}

// buildSync wires tracking plus sync; every command that reconciles or
// reports goes through here
func buildSync(deps modkit.Deps) (*syncmod.Module, error) {
	manual := modmodule.MustPortsOf[syncdom.ManualPort](trackmod.New(deps))
	return syncmod.New(deps, manual)
}

func tracking(deps modkit.Deps) trackdom.TrackerPort {
	return modmodule.MustPortsOf[trackdom.TrackerPort](trackmod.New(deps))
}

func reports(deps modkit.Deps) *reportsvc.Service {
	return modmodule.MustPortsOf[*reportsvc.Service](reportmod.New(deps))
}

// emptyWindow reports the run errors that only mean there was nothing to do
func emptyWindow(err error) bool {
	return perr.IsCode(err, perr.ErrorCodeNoMeetings) || perr.IsCode(err, perr.ErrorCodeNoWorkItems)
}

// parseWindow turns -from/-to day flags into a run window
// the -to day is included in the window
func parseWindow(from, to string) (syncdom.Window, error) {
	var w syncdom.Window
	if from != "" {
		d, err := timeutil.ParseDay(from, time.UTC)
		if err != nil {
			return w, err
		}
		w.From = d
	}
	if to != "" {
		d, err := timeutil.ParseDay(to, time.UTC)
		if err != nil {
			return w, err
		}
		w.To = d.Add(24 * time.Hour)
	}
	return w, nil
}

func cmdSync(ctx context.Context, deps modkit.Deps, args []string) error {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	fFrom := fs.String("from", "", "inicio de la ventana YYYY-MM-DD")
	fTo := fs.String("to", "", "fin de la ventana YYYY-MM-DD (incluido)")
	fDry := fs.Bool("dry-run", false, "simula la corrida sin escribir en Azure DevOps")
	fForce := fs.Bool("force", false, "omite la validación previa a cada escritura")
	fStrategy := fs.String("strategy", "", "estrategia de conflictos: override | add | skip | fail")
	fReport := fs.Bool("report", false, "escribe el reporte diario al terminar")
	if err := fs.Parse(args); err != nil {
		return err
	}

	window, err := parseWindow(*fFrom, *fTo)
	if err != nil {
		return err
	}

	sy, err := buildSync(deps)
	if err != nil {
		return err
	}

	fmt.Println("Iniciando sincronización de horas...")
	run, runErr := modmodule.MustPortsOf[syncdom.SyncPort](sy).Run(ctx, syncdom.RunRequest{
		Window:   window,
		DryRun:   *fDry,
		Force:    *fForce,
		Strategy: *fStrategy,
	})

	fmt.Print(reportsvc.TextSummary(run))
	if run.DryRun {
		fmt.Println("⚠ MODO DRY-RUN: No se aplicaron cambios reales")
	}
	switch {
	case runErr == nil:
		fmt.Println("✓ Sincronización completada exitosamente")
	case emptyWindow(runErr):
		// nothing to reconcile is not a failure
		fmt.Printf("⚠ %v\n", runErr)
	default:
		return runErr
	}

	if *fReport {
		path, err := reports(deps).Daily(ctx, timeutil.DayKey(run.FinishedAt), run)
		if err != nil {
			return err
		}
		fmt.Printf("Reporte diario: %s\n", path)
	}
	return nil
}

func cmdManual(ctx context.Context, deps modkit.Deps, args []string) error {
	fs := flag.NewFlagSet("manual", flag.ContinueOnError)
	fItem := fs.Int("item", 0, "id del work item")
	fHours := fs.Float64("hours", 0, "horas a registrar")
	fDate := fs.String("date", timeutil.DayKey(time.Now()), "día YYYY-MM-DD")
	fDesc := fs.String("desc", "", "descripción de la entrada")
	fUser := fs.String("user", deps.Cfg.Prefix("BVTL_SYNC_").MayString("USER_EMAIL", ""), "usuario que registra")
	fDelete := fs.String("delete", "", "borra la entrada con este id y termina")
	fClear := fs.Bool("clear-synced", false, "elimina las entradas ya sincronizadas y termina")
	if err := fs.Parse(args); err != nil {
		return err
	}

	tr := tracking(deps)
	switch {
	case *fDelete != "":
		if err := tr.Delete(ctx, *fDelete); err != nil {
			return err
		}
		fmt.Printf("✓ Entrada %s eliminada\n", *fDelete)
		return nil
	case *fClear:
		removed, err := tr.ClearSynced(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("✓ %d entradas sincronizadas eliminadas\n", removed)
		return nil
	}

	e, err := tr.Add(ctx, trackdom.NewEntry{
		WorkItemID:  *fItem,
		Hours:       *fHours,
		Date:        *fDate,
		Description: *fDesc,
		User:        *fUser,
	})
	if err != nil {
		return err
	}
	fmt.Printf("✓ Entrada registrada: %s (%.2f horas en #%d el %s)\n", e.ID, e.Hours, e.WorkItemID, e.Date)
	return nil
}

func cmdImport(ctx context.Context, deps modkit.Deps, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fFile := fs.String("file", "", "ruta del CSV a importar")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *fFile == "" {
		return perr.MissingFieldf("import necesita -file")
	}

	f, err := os.Open(*fFile)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeIO, "no se pudo abrir %s", *fFile)
	}
	defer func() { _ = f.Close() }()

	res, err := tracking(deps).ImportCSV(ctx, f)
	if err != nil {
		return err
	}
	fmt.Printf("✓ %d entradas importadas desde %s\n", res.Imported, *fFile)
	for _, rowErr := range res.RowErrors {
		fmt.Printf("  ⚠ %s\n", rowErr)
	}
	return nil
}

func cmdExport(ctx context.Context, deps modkit.Deps, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fOut := fs.String("out", "", "archivo destino (vacío escribe a stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	tr := tracking(deps)
	if *fOut == "" {
		_, err := tr.ExportCSV(ctx, os.Stdout)
		return err
	}

	f, err := os.Create(*fOut)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeIO, "no se pudo crear %s", *fOut)
	}
	defer func() { _ = f.Close() }()

	n, err := tr.ExportCSV(ctx, f)
	if err != nil {
		return err
	}
	fmt.Printf("✓ %d entradas exportadas a %s\n", n, *fOut)
	return nil
}

func cmdList(ctx context.Context, deps modkit.Deps, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fItem := fs.Int("item", 0, "filtra por work item")
	fUser := fs.String("user", "", "filtra por usuario")
	fDate := fs.String("date", "", "filtra por día YYYY-MM-DD")
	fPending := fs.Bool("pending", false, "solo entradas sin sincronizar")
	if err := fs.Parse(args); err != nil {
		return err
	}

	entries, err := tracking(deps).List(ctx, trackdom.Filter{
		WorkItemID:   *fItem,
		User:         *fUser,
		Date:         *fDate,
		OnlyUnsynced: *fPending,
	})
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("Sin entradas")
		return nil
	}
	for _, e := range entries {
		mark := " "
		if e.Synced {
			mark = "✓"
		}
		fmt.Printf("%s %-36s #%-6d %6.2fh  %s  %s\n", mark, e.ID, e.WorkItemID, e.Hours, e.Date, e.Description)
	}
	return nil
}

func cmdSummary(ctx context.Context, deps modkit.Deps, args []string) error {
	fs := flag.NewFlagSet("summary", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	sum, err := tracking(deps).Summarize(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Entradas:       %d (%d sin sincronizar)\n", sum.Entries, sum.Unsynced)
	fmt.Printf("Horas totales:  %.2f\n", sum.TotalHours)
	if sum.FirstEntryDate != "" {
		fmt.Printf("Periodo:        %s a %s\n", sum.FirstEntryDate, sum.LastEntryDate)
	}
	for item, hours := range sum.HoursByItem {
		fmt.Printf("  #%d: %.2f horas\n", item, hours)
	}
	return nil
}

func cmdReport(ctx context.Context, deps modkit.Deps, args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fFrom := fs.String("from", "", "inicio de la ventana YYYY-MM-DD")
	fTo := fs.String("to", "", "fin de la ventana YYYY-MM-DD (incluido)")
	fSprint := fs.String("sprint", "", "también escribe el resumen de sprint con este nombre")
	fMinLevel := fs.String("min-level", string(variance.LevelLight), "nivel mínimo para discrepancias: light | moderate | high")
	if err := fs.Parse(args); err != nil {
		return err
	}

	window, err := parseWindow(*fFrom, *fTo)
	if err != nil {
		return err
	}

	sy, err := buildSync(deps)
	if err != nil {
		return err
	}

	fmt.Println("Generando reportes (corrida en modo dry-run)...")
	run, err := modmodule.MustPortsOf[syncdom.SyncPort](sy).Run(ctx, syncdom.RunRequest{Window: window, DryRun: true})
	switch {
	case err == nil:
	case emptyWindow(err):
		fmt.Printf("⚠ %v\n", err)
	default:
		return err
	}

	rep := reports(deps)
	daily, err := rep.Daily(ctx, timeutil.DayKey(run.FinishedAt), run)
	if err != nil {
		return err
	}
	fmt.Printf("Reporte diario:        %s\n", daily)

	csvPath, err := rep.Discrepancies(ctx, run.Comparisons, variance.ParseLevel(*fMinLevel))
	if err != nil {
		return err
	}
	fmt.Printf("Discrepancias:         %s\n", csvPath)

	if *fSprint != "" {
		path, err := rep.Sprint(ctx, *fSprint, variance.Stats(run.Comparisons), []syncdom.RunSummary{run})
		if err != nil {
			return err
		}
		fmt.Printf("Resumen de sprint:     %s\n", path)
	}
	return nil
}

func cmdSchedule(ctx context.Context, deps modkit.Deps, args []string) error {
	fs := flag.NewFlagSet("schedule", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	sy, err := buildSync(deps)
	if err != nil {
		return err
	}
	sched, err := schedmod.New(deps, modmodule.MustPortsOf[syncdom.SyncPort](sy))
	if err != nil {
		return err
	}
	runner := modmodule.MustPortsOf[*schedsvc.Runner](sched)

	srv := phttp.NewServer(deps.Cfg.Prefix("BVTL_SCHED_"), func(m *chi.Mux) {
		m.Use(middleware.Defaults()...)
		m.Use(middleware.CORS(middleware.CORSOptions{AllowedOrigins: []string{"*"}}))
		m.Use(middleware.AccessLogZerolog(middleware.AccessLogOptions{Slow: 2 * time.Second}))
	})
	sched.MountRoutes(srv.Router())

	fmt.Printf("Demonio iniciado en %s\n", srv.Addr())
	for _, j := range runner.Jobs() {
		fmt.Printf("  job %s: %s\n", j.Name, j.Schedule)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return runner.Run(gctx) })
	g.Go(func() error { return srv.Run(gctx) })
	return g.Wait()
}

func cmdStatus(ctx context.Context, deps modkit.Deps, args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fAddr := fs.String("addr", deps.Cfg.Prefix("BVTL_SCHED_").MayString("ADDR", ":7600"), "dirección del demonio")
	if err := fs.Parse(args); err != nil {
		return err
	}

	base := *fAddr
	if strings.HasPrefix(base, ":") {
		base = "127.0.0.1" + base
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	cli := rest.NewClient(rest.Options{BaseURL: base, Timeout: 5 * time.Second, MaxRetries: 1})

	var body struct {
		Data struct {
			Health  schedsvc.Health     `json:"health"`
			LastRun *syncdom.RunSummary `json:"last_sync"`
		} `json:"data"`
	}
	if err := cli.GetJSON(ctx, "/status", nil, &body); err != nil {
		return perr.Wrapf(err, perr.CodeOf(err), "el demonio no responde en %s", base)
	}

	h := body.Data.Health
	state := "detenido"
	if h.Running {
		state = "activo"
	}
	fmt.Printf("Demonio:    %s (%s)\n", state, base)
	fmt.Printf("Jobs:       %d (%d pausados)\n", h.Jobs, h.Paused)
	if h.Uptime != "" {
		fmt.Printf("Uptime:     %s\n", h.Uptime)
	}
	fmt.Printf("Ejecutados: %d\n", h.Executed)
	if lr := body.Data.LastRun; lr != nil {
		outcome := "exitosa"
		if !lr.Succeeded() {
			outcome = "con error: " + lr.Error
		}
		fmt.Printf("Última sincronización: %s (%s)\n", lr.RunID, outcome)
	}
	return nil
}
