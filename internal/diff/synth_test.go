package diff

import "testing"

func TestSynthesizeNewFile(t *testing.T) {
	got, err := SynthesizeNewFile("./x.txt", "a\nb\n", 3)
	if err != nil {
		t.Fatalf("SynthesizeNewFile: %v", err)
	}
	want := "diff --git a/x.txt b/x.txt\n" +
		"new file mode 100644\n" +
		"--- /dev/null\n" +
		"+++ b/x.txt\n" +
		"@@ -0,0 +1,2 @@\n" +
		"+a\n" +
		"+b\n"
	if got != want {
		t.Errorf("SynthesizeNewFile() =\n%q\nwant\n%q", got, want)
	}
}

func TestSynthesizeNewFile_MissingTrailingNewline(t *testing.T) {
	got, err := SynthesizeNewFile("x.txt", "a\nb", 3)
	if err != nil {
		t.Fatalf("SynthesizeNewFile: %v", err)
	}
	want := "diff --git a/x.txt b/x.txt\n" +
		"new file mode 100644\n" +
		"--- /dev/null\n" +
		"+++ b/x.txt\n" +
		"@@ -0,0 +1,2 @@\n" +
		"+a\n" +
		"+b\n" +
		"\\ No newline at end of file\n"
	if got != want {
		t.Errorf("SynthesizeNewFile() =\n%q\nwant\n%q", got, want)
	}
}

func TestSynthesizeNewFile_Empty(t *testing.T) {
	got, err := SynthesizeNewFile("x.txt", "", 3)
	if err != nil || got != "" {
		t.Errorf("got %q, %v; want empty", got, err)
	}
}

func TestSynthesizeNewFile_Renders(t *testing.T) {
	patch, err := SynthesizeNewFile("x.txt", "a\nb\nc\n", 0)
	if err != nil {
		t.Fatalf("SynthesizeNewFile: %v", err)
	}
	r, err := Build("x.txt", patch, Options{IncludeContents: true})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if r.Contents.Old != "" || r.Contents.New != "a\nb\nc" {
		t.Errorf("Contents = %+v", r.Contents)
	}
}
