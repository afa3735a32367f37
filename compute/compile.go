package compute

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// BuildConfig configures the compilation of a program from source. Create it with Context.Compile, set the
// source with WithSource or WithSourceFile, and call Done to build it.
type BuildConfig struct {
	ctx     *Context
	name    string
	source  string
	options []string

	sourceSet bool
	err       error
}

// Compile returns a configuration to build a program for the context's device.
func (c *Context) Compile() *BuildConfig {
	return &BuildConfig{ctx: c, err: c.check("Compile")}
}

// WithSource sets the program source text.
func (cfg *BuildConfig) WithSource(source string) *BuildConfig {
	if cfg.err != nil {
		return cfg
	}
	if cfg.sourceSet {
		cfg.err = errors.New("BuildConfig: program source set more than once")
		return cfg
	}
	cfg.source = source
	cfg.sourceSet = true
	if cfg.name == "" {
		cfg.name = "<source>"
	}
	return cfg
}

// WithSourceFile reads the program source from the given file. Its base name is used to name the program in
// the build log.
func (cfg *BuildConfig) WithSourceFile(path string) *BuildConfig {
	if cfg.err != nil {
		return cfg
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.err = errors.Wrapf(err, "source file not found: %q", path)
		} else {
			cfg.err = errors.Wrapf(err, "failed to read source file %q", path)
		}
		return cfg
	}
	cfg.name = filepath.Base(path)
	return cfg.WithSource(string(contents))
}

// WithName sets the name used for the program in build logs and errors.
func (cfg *BuildConfig) WithName(name string) *BuildConfig {
	cfg.name = name
	return cfg
}

// WithOptions appends build options, e.g. "-DSCALE=2". Each argument may contain several space separated options.
func (cfg *BuildConfig) WithOptions(options ...string) *BuildConfig {
	for _, opt := range options {
		if opt = strings.TrimSpace(opt); opt != "" {
			cfg.options = append(cfg.options, opt)
		}
	}
	return cfg
}

// Done creates and builds the program.
//
// If the compilation fails it returns a *BuildError with the build log.
func (cfg *BuildConfig) Done() (*Program, error) {
	if cfg.err != nil {
		return nil, cfg.err
	}
	if !cfg.sourceSet {
		return nil, errors.New("BuildConfig: no program source given, use WithSource or WithSourceFile")
	}
	ctx := cfg.ctx
	driver := ctx.platform.driver
	id, status := driver.CreateProgramWithSource(ctx.wrapper.id, cfg.source)
	if err := toError("CreateProgramWithSource", status); err != nil {
		return nil, err
	}
	p := &Program{
		wrapper: newWrapper(id, "ReleaseProgram", driver.ReleaseProgram, &programsAlive),
		ctx:     ctx,
		name:    cfg.name,
		source:  cfg.source,
		options: strings.Join(cfg.options, " "),
	}
	addCleanup(p, p.wrapper, "Program")

	status = driver.BuildProgram(id, ctx.device.id, p.options)
	log, logStatus := driver.ProgramBuildLog(id, ctx.device.id)
	if !logStatus.IsError() {
		p.buildLog = log
	}
	if status == BuildProgramFailure {
		if err := p.Destroy(); err != nil {
			klog.Errorf("compute: releasing program %q after failed build: %v", p.name, err)
		}
		return nil, errors.WithStack(&BuildError{Name: p.name, Log: log})
	}
	if err := toError("BuildProgram", status); err != nil {
		_ = p.Destroy()
		return nil, err
	}

	names, status := driver.ProgramKernelNames(id)
	if err := toError("ProgramKernelNames", status); err != nil {
		_ = p.Destroy()
		return nil, err
	}
	p.kernelNames = names
	klog.V(1).Infof("compute: built program %q with kernels %v", p.name, names)
	return p, nil
}
