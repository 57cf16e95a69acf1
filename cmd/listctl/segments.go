package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"k8s.io/utils/ptr"

	"github.com/foxzi/listctl/internal/config"
	"github.com/foxzi/listctl/segments"
)

var (
	segUserKey  string
	segClientID int64
	segJSON     bool
	segListID   int64
	segName     string
	segQuery    string
	segStats    bool
	segEngage   bool
	segDetails  bool
	segLimit    int
	segOffset   int
)

var segmentsCmd = &cobra.Command{
	Use:     "segments",
	Aliases: []string{"segment", "sublists"},
	Short:   "Segment (sublist) commands",
}

var segmentsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a segment of a list",
	RunE:  runSegmentsCreate,
}

var segmentsUpdateCmd = &cobra.Command{
	Use:   "update <segment_id>",
	Short: "Change the name or query of a segment",
	Args:  cobra.ExactArgs(1),
	RunE:  runSegmentsUpdate,
}

var segmentsDeleteCmd = &cobra.Command{
	Use:   "delete <segment_id>",
	Short: "Delete a segment",
	Args:  cobra.ExactArgs(1),
	RunE:  runSegmentsDelete,
}

var segmentsGetCmd = &cobra.Command{
	Use:   "get <segment_id>",
	Short: "Show segment details",
	Args:  cobra.ExactArgs(1),
	RunE:  runSegmentsGet,
}

var segmentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the segments of a list",
	RunE:  runSegmentsList,
}

var segmentsCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Show the number of contacts in a list",
	RunE:  runSegmentsCount,
}

func init() {
	segmentsCmd.PersistentFlags().StringVar(&segUserKey, "user-key", "", "user key (default: api.user_key from config)")
	segmentsCmd.PersistentFlags().Int64Var(&segClientID, "client-id", 0, "client ID (default: api.client_id from config)")
	segmentsCmd.PersistentFlags().BoolVar(&segJSON, "json", false, "print JSON output")

	segmentsCreateCmd.Flags().Int64Var(&segListID, "list-id", 0, "list ID")
	segmentsCreateCmd.Flags().StringVar(&segName, "name", "", "segment name")
	segmentsCreateCmd.Flags().StringVar(&segQuery, "query", "", "filter query (empty = no filter)")
	segmentsCreateCmd.MarkFlagRequired("list-id")
	segmentsCreateCmd.MarkFlagRequired("name")

	segmentsUpdateCmd.Flags().Int64Var(&segListID, "list-id", 0, "list the segment belongs to")
	segmentsUpdateCmd.Flags().StringVar(&segName, "name", "", "new segment name")
	segmentsUpdateCmd.Flags().StringVar(&segQuery, "query", "", "new filter query")
	segmentsUpdateCmd.MarkFlagRequired("list-id")

	segmentsGetCmd.Flags().BoolVar(&segStats, "statistics", false, "include mailing statistics")
	segmentsGetCmd.Flags().BoolVar(&segEngage, "engagement", false, "calculate engagement")

	segmentsListCmd.Flags().Int64Var(&segListID, "list-id", 0, "list ID")
	segmentsListCmd.Flags().BoolVar(&segDetails, "details", false, "include segment details")
	segmentsListCmd.Flags().IntVar(&segLimit, "limit", 0, "maximum number of segments")
	segmentsListCmd.Flags().IntVar(&segOffset, "offset", 0, "number of segments to skip")
	segmentsListCmd.MarkFlagRequired("list-id")

	segmentsCountCmd.Flags().Int64Var(&segListID, "list-id", 0, "list ID")
	segmentsCountCmd.MarkFlagRequired("list-id")

	segmentsCmd.AddCommand(segmentsCreateCmd, segmentsUpdateCmd, segmentsDeleteCmd,
		segmentsGetCmd, segmentsListCmd, segmentsCountCmd)
	rootCmd.AddCommand(segmentsCmd)
}

// segmentsEnv holds what every segment command needs
type segmentsEnv struct {
	client   *segments.Client
	userKey  string
	clientID *int64
	close    func()
}

func openSegments(cmd *cobra.Command) (*segmentsEnv, error) {
	application, err := newApp()
	if err != nil {
		return nil, err
	}

	client, err := application.Segments()
	if err != nil {
		application.Close()
		return nil, err
	}

	cfg := application.Config()
	userKey, clientID := resolveIdentity(cmd, cfg)
	if userKey == "" {
		application.Close()
		return nil, fmt.Errorf("user key is required (use --user-key or set api.user_key)")
	}

	return &segmentsEnv{
		client:   client,
		userKey:  userKey,
		clientID: clientID,
		close:    func() { application.Close() },
	}, nil
}

// resolveIdentity applies flag overrides to the configured user key and
// client ID. The client ID stays nil unless set somewhere.
func resolveIdentity(cmd *cobra.Command, cfg *config.Config) (string, *int64) {
	userKey := cfg.API.UserKey
	if cmd.Flags().Changed("user-key") {
		userKey = segUserKey
	}

	clientID := cfg.API.ClientID
	if cmd.Flags().Changed("client-id") {
		clientID = ptr.To(segClientID)
	}
	return userKey, clientID
}

func parseSegmentID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid segment id %q", arg)
	}
	return id, nil
}

func runSegmentsCreate(cmd *cobra.Command, args []string) error {
	env, err := openSegments(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	id, err := env.client.Create(context.Background(), env.userKey, segments.CreateRequest{
		ListID:   segListID,
		Name:     segName,
		Query:    segQuery,
		ClientID: env.clientID,
	})
	if err != nil {
		return fmt.Errorf("failed to create segment: %w", err)
	}

	if segJSON {
		return printJSON(map[string]int64{"id": id})
	}
	fmt.Printf("Segment created: %d\n", id)
	return nil
}

func runSegmentsUpdate(cmd *cobra.Command, args []string) error {
	segmentID, err := parseSegmentID(args[0])
	if err != nil {
		return err
	}

	req := segments.UpdateRequest{
		SegmentID: segmentID,
		ListID:    segListID,
	}
	if cmd.Flags().Changed("name") {
		req.Name = ptr.To(segName)
	}
	if cmd.Flags().Changed("query") {
		req.Query = ptr.To(segQuery)
	}

	env, err := openSegments(cmd)
	if err != nil {
		return err
	}
	defer env.close()
	req.ClientID = env.clientID

	ok, err := env.client.Update(context.Background(), env.userKey, req)
	if err != nil {
		return fmt.Errorf("failed to update segment: %w", err)
	}

	return printResult(ok, "Segment %d updated", "Segment %d was not updated", segmentID)
}

func runSegmentsDelete(cmd *cobra.Command, args []string) error {
	segmentID, err := parseSegmentID(args[0])
	if err != nil {
		return err
	}

	env, err := openSegments(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	ok, err := env.client.Delete(context.Background(), env.userKey, segments.DeleteRequest{
		SegmentID: segmentID,
		ClientID:  env.clientID,
	})
	if err != nil {
		return fmt.Errorf("failed to delete segment: %w", err)
	}

	return printResult(ok, "Segment %d deleted", "Segment %d was not deleted", segmentID)
}

func runSegmentsGet(cmd *cobra.Command, args []string) error {
	segmentID, err := parseSegmentID(args[0])
	if err != nil {
		return err
	}

	req := segments.GetRequest{SegmentID: segmentID}
	if cmd.Flags().Changed("statistics") {
		req.IncludeStatistics = ptr.To(segStats)
	}
	if cmd.Flags().Changed("engagement") {
		req.CalculateEngagement = ptr.To(segEngage)
	}

	env, err := openSegments(cmd)
	if err != nil {
		return err
	}
	defer env.close()
	req.ClientID = env.clientID

	seg, err := env.client.Get(context.Background(), env.userKey, req)
	if err != nil {
		return fmt.Errorf("failed to get segment: %w", err)
	}

	if segJSON {
		return printJSON(seg)
	}

	fmt.Printf("ID:         %d\n", seg.ID)
	fmt.Printf("List:       %d\n", seg.ListID)
	fmt.Printf("Name:       %s\n", seg.Name)
	fmt.Printf("Query:      %s\n", seg.Query)
	fmt.Printf("Count:      %d\n", seg.Count)
	fmt.Printf("Mailings:   %d\n", seg.MailingsCount)
	fmt.Printf("Created:    %s\n", seg.CreatedOn.Format("2006-01-02 15:04:05"))
	if seg.LastUsed != nil {
		fmt.Printf("Last used:  %s\n", seg.LastUsed.Format("2006-01-02 15:04:05"))
	}
	if seg.Engagement != nil {
		fmt.Printf("Engagement: %.2f\n", *seg.Engagement)
	}
	return nil
}

func runSegmentsList(cmd *cobra.Command, args []string) error {
	req := segments.GetSegmentsRequest{ListID: segListID}
	if cmd.Flags().Changed("details") {
		req.IncludeDetails = ptr.To(segDetails)
	}
	if cmd.Flags().Changed("limit") {
		req.Limit = ptr.To(segLimit)
	}
	if cmd.Flags().Changed("offset") {
		req.Offset = ptr.To(segOffset)
	}

	env, err := openSegments(cmd)
	if err != nil {
		return err
	}
	defer env.close()
	req.ClientID = env.clientID

	segs, err := env.client.GetSegments(context.Background(), env.userKey, req)
	if err != nil {
		return fmt.Errorf("failed to list segments: %w", err)
	}

	if segJSON {
		return printJSON(segs)
	}

	if len(segs) == 0 {
		fmt.Println("No segments")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCOUNT\tCREATED\tQUERY")
	fmt.Fprintln(w, "--\t----\t-----\t-------\t-----")

	for _, seg := range segs {
		query := shorten(seg.Query, 40)
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n",
			seg.ID,
			seg.Name,
			seg.Count,
			seg.CreatedOn.Format("2006-01-02 15:04"),
			query,
		)
	}

	w.Flush()
	fmt.Printf("\nTotal: %d segments\n", len(segs))
	return nil
}

func runSegmentsCount(cmd *cobra.Command, args []string) error {
	env, err := openSegments(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	count, err := env.client.GetCount(context.Background(), env.userKey, segments.GetCountRequest{
		ListID:   segListID,
		ClientID: env.clientID,
	})
	if err != nil {
		return fmt.Errorf("failed to get list count: %w", err)
	}

	if segJSON {
		return printJSON(map[string]int64{"list_id": segListID, "count": count})
	}
	fmt.Printf("List %d: %d contacts\n", segListID, count)
	return nil
}

func printResult(ok bool, okFormat, failFormat string, id int64) error {
	if segJSON {
		return printJSON(map[string]bool{"result": ok})
	}
	if ok {
		fmt.Printf(okFormat+"\n", id)
	} else {
		fmt.Printf(failFormat+"\n", id)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// shorten cuts s to at most n runes, ending with "..." when cut
func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
