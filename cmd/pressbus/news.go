package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pressbus/pressbus/pkg/client"
	"github.com/pressbus/pressbus/pkg/protocol"
)

func serverFlag(cmd *cobra.Command) {
	cmd.Flags().String("server", "127.0.0.1:5555", "server address")
}

func dialServer(cmd *cobra.Command) (*client.Client, error) {
	addr, _ := cmd.Flags().GetString("server")
	return client.Dial(addr)
}

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish an article",
	Long: `Publish one article to the server.

Examples:
  pressbus publish --title "Go 1.26 released" --category tech
  pressbus publish --title "Cup final tonight" --lead "Kickoff at 20:00" --category sports`,
	RunE: runPublish,
}

var watchCmd = &cobra.Command{
	Use:   "watch [category...]",
	Short: "Subscribe to categories and stream incoming articles",
	Long: `Subscribe to the given categories (or the wildcard when none are given)
and print each incoming article until interrupted.`,
	RunE: runWatch,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Query retained articles",
	RunE:  runHistory,
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List the server's category set",
	RunE:  runCategories,
}

var newsCmd = &cobra.Command{
	Use:   "news",
	Short: "Administer the article history",
}

var newsDeleteCmd = &cobra.Command{
	Use:   "delete [id...]",
	Short: "Delete articles by id",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runNewsDelete,
}

var newsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the entire article history",
	RunE:  runNewsClear,
}

func init() {
	publishCmd.Flags().String("title", "", "article title (required)")
	publishCmd.Flags().String("lead", "", "article lead text")
	publishCmd.Flags().String("category", "", "article category (required)")
	_ = publishCmd.MarkFlagRequired("title")
	_ = publishCmd.MarkFlagRequired("category")
	serverFlag(publishCmd)

	watchCmd.Flags().String("wildcard", "*", "wildcard keyword used when no categories are given")
	serverFlag(watchCmd)

	historyCmd.Flags().String("category", "", "category filter (empty = all)")
	historyCmd.Flags().Int("limit", 0, "maximum articles (0 = server default)")
	serverFlag(historyCmd)

	serverFlag(categoriesCmd)
	serverFlag(newsDeleteCmd)
	serverFlag(newsClearCmd)

	newsCmd.AddCommand(newsDeleteCmd)
	newsCmd.AddCommand(newsClearCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	c, err := dialServer(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	title, _ := cmd.Flags().GetString("title")
	lead, _ := cmd.Flags().GetString("lead")
	category, _ := cmd.Flags().GetString("category")

	ack, err := c.Publish(title, lead, category)
	if err != nil {
		return err
	}
	fmt.Println(ack)
	return c.Disconnect()
}

func runWatch(cmd *cobra.Command, args []string) error {
	c, err := dialServer(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	categories := args
	if len(categories) == 0 {
		wildcard, _ := cmd.Flags().GetString("wildcard")
		categories = []string{wildcard}
	}
	if err := c.Subscribe(categories...); err != nil {
		return err
	}
	fmt.Printf("watching %v; Ctrl+C to stop\n", categories)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case <-sigCh:
			return c.Disconnect()
		default:
		}

		msg, err := c.Next(time.Second)
		if err != nil {
			// Deadline passes are normal while idle.
			if isTimeout(err) {
				continue
			}
			return err
		}
		if msg.Type != protocol.TypeNews {
			continue
		}
		fmt.Printf("[%s] %s: %s\n",
			msg.StringOr("category", "?"),
			msg.StringOr("title", ""),
			msg.StringOr("lead", ""))
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func runHistory(cmd *cobra.Command, args []string) error {
	c, err := dialServer(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	category, _ := cmd.Flags().GetString("category")
	limit, _ := cmd.Flags().GetInt("limit")

	articles, err := c.History(category, limit)
	if err != nil {
		return err
	}
	if len(articles) == 0 {
		fmt.Println("no articles")
		return c.Disconnect()
	}
	for _, article := range articles {
		fmt.Printf("%4d  %s  [%s]  %s\n",
			article.ID,
			article.Timestamp.Local().Format("2006-01-02 15:04"),
			article.Category,
			article.Title)
	}
	return c.Disconnect()
}

func runCategories(cmd *cobra.Command, args []string) error {
	c, err := dialServer(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	categories, err := c.Categories()
	if err != nil {
		return err
	}
	for _, category := range categories {
		fmt.Println(category)
	}
	return c.Disconnect()
}

func runNewsDelete(cmd *cobra.Command, args []string) error {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid article id %q", arg)
		}
		ids = append(ids, id)
	}

	c, err := dialServer(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.DeleteNews(ids...); err != nil {
		return err
	}
	fmt.Printf("deleted %d article(s)\n", len(ids))
	return c.Disconnect()
}

func runNewsClear(cmd *cobra.Command, args []string) error {
	c, err := dialServer(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Clear(); err != nil {
		return err
	}
	fmt.Println("history cleared")
	return c.Disconnect()
}
