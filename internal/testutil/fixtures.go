package testutil

import (
	"strings"

	"github.com/chuckie/autopr/internal/domain"
)

// SampleDiffSmall is a small sample diff for testing.
const SampleDiffSmall = `diff --git a/main.go b/main.go
index 1234567..abcdefg 100644
--- a/main.go
+++ b/main.go
@@ -1,5 +1,10 @@
 package main

+import "fmt"
+
 func main() {
-    println("Hello")
+    fmt.Println("Hello, World!")
 }
`

// SampleDiffLarge is a large sample diff for testing diff capping (generated at runtime).
var SampleDiffLarge = func() string {
	const header = `diff --git a/very_long_file.go b/very_long_file.go
index 1234567..abcdefg 100644
--- a/very_long_file.go
+++ b/very_long_file.go
@@ -1,5 +1,1000 @@
 package main

`
	return header + strings.Repeat("// This is a very long comment line that repeats\n", 200)
}()

// SampleIssues is a gh issue list payload with two issues.
const SampleIssues = `[{"number":12,"title":"Greeting is too terse","labels":[],"body":"Say hello to the world."},{"number":15,"title":"Add CI","labels":[{"name":"infra"}],"body":""}]`

// SampleNaming returns a valid naming.
func SampleNaming() domain.Naming {
	return domain.Naming{
		BranchName:        "feat/hello-world",
		CommitTitle:       "feat(main): greet the world",
		CommitDescription: "Relates to #12",
	}
}
