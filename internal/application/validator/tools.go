package validator

// commonTools is the allowlist probed for prompt context.
var commonTools = []string{
	// version control, containers, languages
	"git", "docker", "npm", "node", "python", "python3", "pip", "pip3", "cargo", "rustc",
	// package managers and archivers
	"brew", "apt", "apt-get", "yum", "dnf", "tar", "zip", "unzip", "gzip",
	// network and text
	"curl", "wget", "ssh", "scp", "rsync", "find", "grep", "sed", "awk", "sort", "uniq", "wc",
	"head", "tail", "ls", "cd", "pwd", "mkdir", "rm", "cp", "mv", "chmod", "chown", "cat",
	"less", "more", "echo", "printf", "date", "whoami",
	// processes and system
	"ps", "top", "htop", "kill", "killall", "jobs", "bg", "fg", "nohup", "mount", "umount",
	"df", "du", "free", "uname", "which", "whereis", "man", "info", "help", "history",
	"alias", "export", "source",
	// editors and toolchains
	"vim", "nano", "emacs", "code", "make", "cmake", "gcc", "g++", "java", "javac", "scala",
	"kotlin", "go", "ruby", "perl", "php",
	// data stores and infrastructure
	"mysql", "postgresql", "psql", "redis-cli", "mongo", "kubectl", "helm", "terraform",
	"ansible", "vault", "consul", "nomad",
}

// CommonTools returns a copy of the probed tool allowlist.
func CommonTools() []string {
	out := make([]string, len(commonTools))
	copy(out, commonTools)
	return out
}
