package buildinfo

import "runtime/debug"

// Set with -ldflags "-X cvrpga/internal/buildinfo.Version=..."
var (
    Version = "dev"
    Commit  = ""
    BuiltAt = ""
)

// Info reports the linked build values, falling back to VCS stamps from the Go toolchain.
func Info() map[string]string {
    out := map[string]string{
        "version": Version,
        "commit":  Commit,
        "builtAt": BuiltAt,
    }
    bi, ok := debug.ReadBuildInfo()
    if !ok { return out }
    out["go"] = bi.GoVersion
    for _, s := range bi.Settings {
        switch s.Key {
        case "vcs.revision":
            if out["commit"] == "" { out["commit"] = s.Value }
        case "vcs.time":
            if out["builtAt"] == "" { out["builtAt"] = s.Value }
        }
    }
    return out
}
