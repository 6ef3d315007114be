package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/terra-clan/ciel-content/internal/article"
	"github.com/terra-clan/ciel-content/internal/browse"
	"github.com/terra-clan/ciel-content/internal/catalog"
	"github.com/terra-clan/ciel-content/internal/interaction"
	"github.com/terra-clan/ciel-content/internal/models"
	"github.com/terra-clan/ciel-content/internal/query"
	"github.com/terra-clan/ciel-content/internal/refcache"
	"github.com/terra-clan/ciel-content/internal/view"
)

var (
	searchFlag   string
	categoryFlag string
	sortFlag     string
	pageFlag     int
	pageSizeFlag int

	likeCommentFlag bool

	authorFlag  string
	contentFlag string

	levelFlag string
)

func init() {
	articlesCmd.Flags().StringVar(&searchFlag, "search", "", "Search text")
	articlesCmd.Flags().StringVar(&categoryFlag, "category", "", "Category filter")
	articlesCmd.Flags().StringVar(&sortFlag, "sort", string(query.SortRecent), "Sort: recent, popular or mostCommented")
	articlesCmd.Flags().IntVar(&pageFlag, "page", 1, "Page number")
	articlesCmd.Flags().IntVar(&pageSizeFlag, "page-size", 0, "Articles per page (default from config)")

	likeCmd.Flags().BoolVar(&likeCommentFlag, "comment", false, "The id is a comment id")

	commentCmd.Flags().StringVar(&authorFlag, "author", "", "Comment author")
	commentCmd.Flags().StringVar(&contentFlag, "content", "", "Comment text")

	formationsCmd.Flags().StringVar(&levelFlag, "level", string(models.LevelBacPro), "Level: BAC_PRO, BTS or MASTER")
}

var articlesCmd = &cobra.Command{
	Use:   "articles",
	Short: "List articles",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		size := pageSizeFlag
		if size <= 0 {
			size = cfg.Browse.PageSize
		}
		d := query.Build(searchFlag, categoryFlag, query.ParseSortKey(sortFlag), pageFlag, size)

		b := browse.New(newClient(), d, browse.WithTimeout(cfg.Upstream.Timeout))
		if _, err := b.Load(ctx).Wait(ctx); err != nil {
			return fmt.Errorf("listing articles: %w", err)
		}

		l := b.Snapshot()
		if l.Error != "" {
			return fmt.Errorf("listing articles: %s", l.Error)
		}
		if len(l.Items) == 0 {
			fmt.Println("No articles found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tCATEGORY\tLIKES\tCOMMENTS\tPUBLISHED")
		for _, a := range l.Items {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
				a.ID, a.Title, a.Category, a.LikeCount, a.CommentCount, a.PublishedAt.Format("2006-01-02"))
		}
		w.Flush()

		fmt.Printf("\nPage %d of %d (%d articles)\n", l.PageInfo.Page, l.PageInfo.PageCount, l.PageInfo.Total)
		return nil
	},
}

var articleCmd = &cobra.Command{
	Use:   "article <id>",
	Short: "Show an article with its comments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v := article.NewView(args[0], newClient(), article.WithTimeout(cfg.Upstream.Timeout))
		if err := v.Load(cmd.Context()); err != nil {
			return fmt.Errorf("loading article: %w", err)
		}

		p := view.ProjectArticle(v.Snapshot(), models.CommentDraft{}, false)
		a := p.Article

		fmt.Println(a.Title)
		fmt.Printf("%s · %s · %s · %d likes\n\n", a.Category, a.Author, a.ReadTime, a.LikeCount)
		for _, seg := range a.Content {
			switch seg.Kind {
			case models.SegmentHeading:
				fmt.Printf("%s %s\n\n", strings.Repeat("#", seg.Level), seg.Text)
			case models.SegmentListItem:
				fmt.Printf("  - %s\n", seg.Text)
			default:
				fmt.Printf("%s\n\n", seg.Text)
			}
		}

		fmt.Printf("\nComments (%d)\n", len(p.Comments))
		for _, c := range p.Comments {
			fmt.Printf("  [%s] %s (%d likes): %s\n", c.ID, c.Author, c.LikeCount, c.Content)
		}

		if len(p.Related) > 0 {
			fmt.Println("\nRelated")
			for _, r := range p.Related {
				fmt.Printf("  [%s] %s\n", r.ID, r.Title)
			}
		}
		return nil
	},
}

var likeCmd = &cobra.Command{
	Use:   "like <id>",
	Short: "Like an article, or a comment with --comment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := interaction.New(newClient())

		like := c.LikeArticle
		if likeCommentFlag {
			like = c.LikeComment
		}

		likes, err := like(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s now has %d likes\n", args[0], likes)
		return nil
	},
}

var commentCmd = &cobra.Command{
	Use:   "comment <article-id>",
	Short: "Post a comment on an article",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := interaction.New(newClient())

		thread, err := c.Submit(cmd.Context(), args[0], authorFlag, contentFlag)
		if err != nil {
			return err
		}
		fmt.Printf("Comment posted, the thread now has %d comments\n", len(thread))
		return nil
	},
}

var formationsCmd = &cobra.Command{
	Use:   "formations",
	Short: "Show the formation of a level",
	RunE: func(cmd *cobra.Command, args []string) error {
		selection := catalog.NewSelection()
		if _, err := selection.Select(levelFlag); err != nil {
			return err
		}

		svc := catalog.NewService(newClient(), refcache.NewMemoryCache(), catalogOptions()...)
		formations, err := svc.Formations(cmd.Context())
		if err != nil {
			return err
		}

		c := view.ProjectCatalog(formations, selection.Level())
		for _, tab := range c.Levels {
			marker := " "
			if tab.Selected {
				marker = "*"
			}
			fmt.Printf("%s %s\n", marker, tab.Label)
		}

		f := c.Selected
		if f == nil {
			fmt.Println("\nNo formation published for this level.")
			return nil
		}

		fmt.Printf("\n%s (%s)\n%s\n", f.Title, f.Duration, f.Description)
		printList("Objectives", f.Objectives)
		printList("Skills", f.Skills)
		printList("Career paths", f.CareerPaths)
		printList("Admission", f.AdmissionRequirements)
		return nil
	},
}

func printList(title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Printf("\n%s\n", title)
	for _, it := range items {
		fmt.Printf("  - %s\n", it)
	}
}
