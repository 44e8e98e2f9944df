package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gestion-locative/internal/auth"
	"gestion-locative/internal/backup"
	"gestion-locative/internal/config"
	"gestion-locative/internal/database"
	"gestion-locative/internal/expense"
	"gestion-locative/internal/logging"
	"gestion-locative/internal/models"
	"gestion-locative/internal/period"
	"gestion-locative/internal/receipt"
	"gestion-locative/internal/report"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type env struct {
	cfg *config.Config
	log *zap.Logger
	db  *gorm.DB
}

// open loads the configuration and connects; Open also migrates.
func open() (*env, error) {
	cfg := config.Load()
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	db, err := database.Open(cfg, log)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log, db: db}, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Crée ou met à jour le schéma",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := open(); err != nil {
				return err
			}
			fmt.Println("Schéma à jour.")
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "seed", Short: "Données de référence"}
	cmd.AddCommand(&cobra.Command{
		Use:   "expense-types",
		Short: "Crée les types de dépense par défaut",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open()
			if err != nil {
				return err
			}
			n, err := expense.SeedDefaultTypes(e.db)
			if err != nil {
				return err
			}
			fmt.Printf("%d type(s) de dépense créé(s).\n", n)
			return nil
		},
	})
	return cmd
}

func receiptsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "receipts", Short: "Quittances"}
	generate := &cobra.Command{
		Use:   "generate",
		Short: "Génère les quittances d'un mois",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, _ := cmd.Flags().GetString("month")
			all, _ := cmd.Flags().GetBool("all")
			buildings, _ := cmd.Flags().GetUintSlice("building")
			month, err := period.ParseMonth(raw)
			if err != nil {
				return err
			}
			e, err := open()
			if err != nil {
				return err
			}
			store, err := receipt.NewStore(e.cfg)
			if err != nil {
				return err
			}
			svc := receipt.NewService(e.db, e.log, receipt.PDFRenderer{}, store)
			res, err := svc.GenerateMonth(context.Background(), month, buildings, !all)
			if err != nil {
				return err
			}
			for _, r := range res.Generated {
				fmt.Printf("%s  bail %d  %s €\n", r.Number, r.LeaseID, r.Total.StringFixed(2))
			}
			for _, be := range res.Errors {
				fmt.Fprintf(os.Stderr, "bail %d : %s\n", be.LeaseID, be.Error)
			}
			fmt.Printf("%s : %d bail(s), %d quittance(s), %d erreur(s)\n", res.Month, res.Leases, len(res.Generated), len(res.Errors))
			return nil
		},
	}
	generate.Flags().String("month", "", "mois YYYY-MM")
	generate.Flags().Bool("all", false, "inclure les baux sans paiement reçu")
	generate.Flags().UintSlice("building", nil, "limiter à ces immeubles")
	_ = generate.MarkFlagRequired("month")
	cmd.AddCommand(generate)
	return cmd
}

func outputFile(cmd *cobra.Command, def string) (*os.File, error) {
	path, _ := cmd.Flags().GetString("output")
	if path == "" {
		path = def
	}
	return os.Create(path)
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "export", Short: "Exports XLSX"}

	payments := &cobra.Command{
		Use:   "payments",
		Short: "Suivi des loyers d'un mois",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, _ := cmd.Flags().GetString("month")
			month, err := period.ParseMonth(raw)
			if err != nil {
				return err
			}
			e, err := open()
			if err != nil {
				return err
			}
			f, err := outputFile(cmd, "paiements_"+period.Prefix(month)+".xlsx")
			if err != nil {
				return err
			}
			defer f.Close()
			if err := report.NewService(e.db, e.log).ExportPayments(month, f); err != nil {
				return err
			}
			fmt.Println("Export écrit :", f.Name())
			return nil
		},
	}
	payments.Flags().String("month", "", "mois YYYY-MM")
	payments.Flags().StringP("output", "o", "", "fichier de sortie")
	_ = payments.MarkFlagRequired("month")

	allocations := &cobra.Command{
		Use:   "allocations",
		Short: "Répartition d'une dépense",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := cmd.Flags().GetUint("expense")
			e, err := open()
			if err != nil {
				return err
			}
			f, err := outputFile(cmd, fmt.Sprintf("repartition_depense_%d.xlsx", id))
			if err != nil {
				return err
			}
			defer f.Close()
			if err := report.NewService(e.db, e.log).ExportAllocations(id, f); err != nil {
				return err
			}
			fmt.Println("Export écrit :", f.Name())
			return nil
		},
	}
	allocations.Flags().Uint("expense", 0, "identifiant de la dépense")
	allocations.Flags().StringP("output", "o", "", "fichier de sortie")
	_ = allocations.MarkFlagRequired("expense")

	cmd.AddCommand(payments, allocations)
	return cmd
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Comptes utilisateurs"}
	create := &cobra.Command{
		Use:   "create",
		Short: "Crée un compte",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			role, _ := cmd.Flags().GetString("role")
			e, err := open()
			if err != nil {
				return err
			}
			u, err := auth.CreateUser(e.db, name, email, password, models.UserRole(role))
			if err != nil {
				return err
			}
			fmt.Printf("Utilisateur %d créé (%s, %s).\n", u.ID, u.Email, u.Role)
			return nil
		},
	}
	create.Flags().String("name", "", "nom affiché")
	create.Flags().String("email", "", "adresse de connexion")
	create.Flags().String("password", "", "mot de passe (8 caractères minimum)")
	create.Flags().String("role", string(models.RoleAdmin), "admin ou gestionnaire")
	for _, f := range []string{"name", "email", "password"} {
		_ = create.MarkFlagRequired(f)
	}
	cmd.AddCommand(create)
	return cmd
}

func backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Sauvegarde complète de la base au format JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("filename")
			e, err := open()
			if err != nil {
				return err
			}
			path, s, err := backup.NewManager(e.db, e.log, e.cfg.BackupDir).Create(name)
			if err != nil {
				return err
			}
			for _, table := range sortedKeys(s.Stats) {
				fmt.Printf("  %-22s %d\n", table, s.Stats[table])
			}
			fmt.Printf("Sauvegarde créée : %s (%d objet(s))\n", path, s.Objects())
			return nil
		},
	}
	cmd.Flags().String("filename", "", "nom du fichier (backup_<date>_<heure>.json par défaut)")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Liste les sauvegardes disponibles",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			files, err := backup.NewManager(nil, zap.NewNop(), cfg.BackupDir).List()
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Println("Aucune sauvegarde dans", cfg.BackupDir)
				return nil
			}
			for _, f := range files {
				objects := "illisible"
				if f.Objects >= 0 {
					objects = fmt.Sprintf("%d objet(s)", f.Objects)
				}
				fmt.Printf("%s  %s  %.1f Ko  %s\n", f.Name, f.Modified.Format("02/01/2006 15:04"), float64(f.Size)/1024, objects)
			}
			return nil
		},
	})
	return cmd
}

func restoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <fichier>",
		Short: "Remplace le contenu de la base par une sauvegarde",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			yes, _ := cmd.Flags().GetBool("yes")
			e, err := open()
			if err != nil {
				return err
			}
			m := backup.NewManager(e.db, e.log, e.cfg.BackupDir)
			s, err := m.Open(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Sauvegarde du %s, %d objet(s)\n", s.Timestamp.Format(time.RFC3339), s.Objects())
			if !yes {
				fmt.Print("Cette opération va ÉCRASER les données existantes. Continuer ? (o/N) ")
				answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				switch strings.ToLower(strings.TrimSpace(answer)) {
				case "o", "oui", "y", "yes":
				default:
					fmt.Println("Restauration annulée.")
					return nil
				}
			}
			n, err := m.Restore(s)
			if err != nil {
				return err
			}
			fmt.Printf("Restauration terminée : %d objet(s).\n", n)
			return nil
		},
	}
	cmd.Flags().BoolP("yes", "y", false, "ne pas demander de confirmation")
	return cmd
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
