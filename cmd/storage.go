// Handles the "gcloud storage" commands

package cmd

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/gcloudkit/gcloud/pkg/storage"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Cloud Storage",
	Long:  `Manage buckets and the files in them.`,
}

var storageBucketsCmd = &cobra.Command{
	Use:   "buckets [PREFIX]",
	Short: "List buckets",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		st, err := gcManager.Storage(ctx)
		if err != nil {
			return err
		}
		prefix := ""
		if len(args) == 1 {
			prefix = args[0]
		}
		buckets, err := st.Buckets(ctx, prefix)
		if err != nil {
			return err
		}
		for _, b := range buckets {
			fmt.Printf("%s\t%s\t%s\n", b.Name, b.Location, b.StorageClass)
		}
		return nil
	},
}

var storageCreateBucketCmdConfig struct {
	location   string
	class      string
	labels     string
	versioning bool
}

var storageCreateBucketCmd = &cobra.Command{
	Use:   "create-bucket NAME",
	Short: "Create a bucket",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		st, err := gcManager.Storage(ctx)
		if err != nil {
			return err
		}
		b, err := st.CreateBucket(ctx, &storage.Bucket{
			Name:         args[0],
			Location:     storageCreateBucketCmdConfig.location,
			StorageClass: storageCreateBucketCmdConfig.class,
			Labels:       parseKeyValue(storageCreateBucketCmdConfig.labels),
			Versioning:   storageCreateBucketCmdConfig.versioning,
		})
		if err != nil {
			return errors.Wrap(err, "Create bucket failed")
		}
		gcManager.Logger.Infof("Created bucket %s in %s", b.Name, b.Location)
		return nil
	},
}

var storageLsCmd = &cobra.Command{
	Use:   "ls BUCKET [PREFIX]",
	Short: "List files",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		st, err := gcManager.Storage(ctx)
		if err != nil {
			return err
		}
		prefix := ""
		if len(args) == 2 {
			prefix = args[1]
		}
		files, err := st.Files(ctx, args[0], prefix)
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Printf("%10d  %s  %s\n", f.Size, f.Updated.Format("2006-01-02 15:04"), f.Name)
		}
		return nil
	},
}

var storageUploadCmdConfig struct {
	name        string
	contentType string
}

var storageUploadCmd = &cobra.Command{
	Use:   "upload FILE BUCKET",
	Short: "Upload a local file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		st, err := gcManager.Storage(ctx)
		if err != nil {
			return err
		}

		in, err := os.Open(args[0])
		if err != nil {
			return errors.Wrap(err, "Failed to open "+args[0])
		}
		defer in.Close()

		name := storageUploadCmdConfig.name
		if name == "" {
			name = filepath.Base(args[0])
		}
		contentType := storageUploadCmdConfig.contentType
		if contentType == "" {
			contentType = mime.TypeByExtension(filepath.Ext(args[0]))
		}

		f, err := st.CreateFile(ctx, args[1], name, in, storage.FileOptions{ContentType: contentType})
		if err != nil {
			return errors.Wrap(err, "Upload failed")
		}
		gcManager.Logger.Infof("Uploaded %s (%d bytes, md5 %s)", f.Name, f.Size, f.MD5)
		return nil
	},
}

var storageCatCmd = &cobra.Command{
	Use:   "cat BUCKET NAME",
	Short: "Write the contents of a file to stdout",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		st, err := gcManager.Storage(ctx)
		if err != nil {
			return err
		}
		_, err = st.Download(ctx, args[0], args[1], os.Stdout)
		return err
	},
}

var storageRmCmd = &cobra.Command{
	Use:   "rm BUCKET [NAME]",
	Short: "Delete a file, or the bucket itself if no file is named",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		st, err := gcManager.Storage(ctx)
		if err != nil {
			return err
		}
		if len(args) == 2 {
			return st.DeleteFile(ctx, args[0], args[1])
		}
		return st.DeleteBucket(ctx, args[0])
	},
}

func init() {
	rootCmd.AddCommand(storageCmd)

	storageCmd.AddCommand(storageBucketsCmd)

	storageCmd.AddCommand(storageCreateBucketCmd)
	storageCreateBucketCmd.Flags().StringVar(&storageCreateBucketCmdConfig.location, "location", "", "bucket location, e.g. US or EUROPE-WEST1")
	storageCreateBucketCmd.Flags().StringVar(&storageCreateBucketCmdConfig.class, "storage-class", "", "default storage class")
	storageCreateBucketCmd.Flags().StringVarP(&storageCreateBucketCmdConfig.labels, "labels", "l", "", "bucket labels: key1=value1,key2=value2")
	storageCreateBucketCmd.Flags().BoolVar(&storageCreateBucketCmdConfig.versioning, "versioning", false, "keep old generations of files")

	storageCmd.AddCommand(storageLsCmd)

	storageCmd.AddCommand(storageUploadCmd)
	storageUploadCmd.Flags().StringVarP(&storageUploadCmdConfig.name, "name", "n", "", "name in the bucket, default is the file's base name")
	storageUploadCmd.Flags().StringVar(&storageUploadCmdConfig.contentType, "content-type", "", "content type, default is guessed from the extension")

	storageCmd.AddCommand(storageCatCmd)
	storageCmd.AddCommand(storageRmCmd)
}
