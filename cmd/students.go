package cmd

import (
	"context"
	"fmt"
	"image"
	"os"

	_ "image/jpeg"
	_ "image/png"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/smart-attendance/internal/config"
	"github.com/kozaktomas/smart-attendance/internal/roster"
	"github.com/kozaktomas/smart-attendance/internal/storage/sis"
)

var studentsCmd = &cobra.Command{
	Use:   "students",
	Short: "Manage the enrolled student roster",
}

var studentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled students",
	RunE:  runStudentsList,
}

var studentsEnrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Enroll a student from a photo",
	Long: `Enroll a new student by name from a photo containing exactly one face.
The face encoding is computed by the detector service and stored as the
student's reference encoding.`,
	RunE: runStudentsEnroll,
}

var studentsImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import student names from the school information system",
	Long: `Pre-register students from the SIS MySQL database (SIS_MYSQL_DSN).
Imported students have no face encodings yet and are never matched by
the camera until a photo is enrolled for them.`,
	RunE: runStudentsImport,
}

func init() {
	rootCmd.AddCommand(studentsCmd)
	studentsCmd.AddCommand(studentsListCmd)
	studentsCmd.AddCommand(studentsEnrollCmd)
	studentsCmd.AddCommand(studentsImportCmd)

	studentsEnrollCmd.Flags().String("name", "", "Student display name (required)")
	studentsEnrollCmd.Flags().String("photo", "", "Path to an enrollment photo (required)")
	studentsEnrollCmd.MarkFlagRequired("name")
	studentsEnrollCmd.MarkFlagRequired("photo")
}

func runStudentsList(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	c, err := buildComponents(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.roster.Load(context.Background()); err != nil {
		return fmt.Errorf("loading roster: %w", err)
	}

	identities := c.roster.AllIdentities()
	if len(identities) == 0 {
		fmt.Println("No students enrolled")
		return nil
	}

	fmt.Printf("%-38s %-30s %s\n", "ID", "Name", "Encodings")
	for _, id := range identities {
		fmt.Printf("%-38s %-30s %d\n", id.ID, id.DisplayName, len(id.Encodings))
	}
	fmt.Printf("\n%d students enrolled\n", len(identities))
	return nil
}

func runStudentsEnroll(cmd *cobra.Command, args []string) error {
	name := mustGetString(cmd, "name")
	photoPath := mustGetString(cmd, "photo")

	cfg := config.Load()
	c, err := buildComponents(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx := context.Background()
	if err := c.roster.Load(ctx); err != nil {
		return fmt.Errorf("loading roster: %w", err)
	}

	f, err := os.Open(photoPath)
	if err != nil {
		return fmt.Errorf("opening photo: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("decoding photo: %w", err)
	}

	detections, err := c.detector.Detect(ctx, img)
	if err != nil {
		return fmt.Errorf("detecting face: %w", err)
	}
	if len(detections) != 1 {
		return fmt.Errorf("photo must contain exactly one face, found %d", len(detections))
	}

	// Already pre-registered (e.g. SIS import) means this photo is the
	// first reference encoding, not a new student.
	if id, ok := c.roster.FindByName(name); ok {
		if err := c.roster.AddEncoding(ctx, id, detections[0].Encoding); err != nil {
			return fmt.Errorf("adding encoding: %w", err)
		}
		fmt.Printf("Added encoding to existing student %s (%s)\n", name, id)
		return nil
	}

	identity, err := c.roster.Enroll(ctx, name, detections[0].Encoding)
	if err != nil {
		return fmt.Errorf("enrolling student: %w", err)
	}

	fmt.Printf("Enrolled %s (%s)\n", identity.DisplayName, identity.ID)
	return nil
}

func runStudentsImport(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if cfg.SIS.MySQLDSN == "" {
		return fmt.Errorf("SIS_MYSQL_DSN environment variable is required")
	}

	c, err := buildComponents(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx := context.Background()
	if err := c.roster.Load(ctx); err != nil {
		return fmt.Errorf("loading roster: %w", err)
	}

	sisPool, err := sis.NewPool(cfg.SIS.MySQLDSN)
	if err != nil {
		return fmt.Errorf("connecting to SIS: %w", err)
	}
	defer sisPool.Close()

	students, err := sisPool.ListActiveStudents(ctx)
	if err != nil {
		return fmt.Errorf("listing SIS students: %w", err)
	}
	if len(students) == 0 {
		fmt.Println("SIS returned no active students")
		return nil
	}

	bar := progressbar.NewOptions(len(students),
		progressbar.OptionSetDescription("Importing students"),
		progressbar.OptionShowCount(),
	)

	imported, skipped := 0, 0
	for _, s := range students {
		bar.Add(1)

		if _, ok := c.roster.FindByName(s.FullName); ok {
			skipped++
			continue
		}

		identity := roster.Identity{
			ID:          uuid.NewString(),
			DisplayName: s.FullName,
		}
		if err := c.students.CreateStudent(ctx, identity); err != nil {
			return fmt.Errorf("importing %s: %w", s.FullName, err)
		}
		imported++
	}
	fmt.Printf("\nImported %d students, %d already enrolled\n", imported, skipped)

	return nil
}
